package repo

import (
	"context"
	"database/sql"

	"stride/internal/domain"
)

func (r Repo) InsertReviewTx(ctx context.Context, tx *sql.Tx, rv domain.CommitteeReview) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO committee_reviews(id,requirement_id,reviewer_id,user_need_score,technical_feasibility_score,
doe_results_score,cost_effectiveness_score,safety_score,weighted_total,recommendation,feedback,conditions,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rv.ID, rv.RequirementID, rv.ReviewerID, rv.UserNeed, rv.TechnicalFeasibility,
		rv.DoEResults, rv.CostEffectiveness, rv.Safety, rv.WeightedTotal, rv.Recommendation,
		nullable(rv.Feedback), nullable(rv.Conditions), rv.CreatedAt)
	return err
}

// ListReviews returns committee reviews for a requirement, oldest first.
func (r Repo) ListReviews(ctx context.Context, requirementID string) ([]domain.CommitteeReview, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,requirement_id,reviewer_id,user_need_score,technical_feasibility_score,
doe_results_score,cost_effectiveness_score,safety_score,weighted_total,recommendation,COALESCE(feedback,''),COALESCE(conditions,''),created_at
FROM committee_reviews WHERE requirement_id=? ORDER BY created_at, rowid`, requirementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CommitteeReview
	for rows.Next() {
		var rv domain.CommitteeReview
		if err := rows.Scan(&rv.ID, &rv.RequirementID, &rv.ReviewerID, &rv.UserNeed, &rv.TechnicalFeasibility,
			&rv.DoEResults, &rv.CostEffectiveness, &rv.Safety, &rv.WeightedTotal, &rv.Recommendation,
			&rv.Feedback, &rv.Conditions, &rv.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rv)
	}
	return res, rows.Err()
}
