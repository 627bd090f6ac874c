package engine

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"

	"stride/internal/domain"
	"stride/internal/events"
	"stride/internal/lifecycle"
	"stride/internal/repo"
)

// Score weights of a committee review. They sum to 1.
const (
	WeightUserNeed             = 0.25
	WeightTechnicalFeasibility = 0.20
	WeightDoEResults           = 0.25
	WeightCostEffectiveness    = 0.15
	WeightSafety               = 0.15
)

const (
	minScore = 1
	maxScore = 10
)

type ReviewInput struct {
	UserNeed             int
	TechnicalFeasibility int
	DoEResults           int
	CostEffectiveness    int
	Safety               int
	Recommendation       string
	Feedback             string
	Conditions           string
}

// WeightedTotal combines the five scores, rounded to one decimal.
func (in ReviewInput) WeightedTotal() float64 {
	total := float64(in.UserNeed)*WeightUserNeed +
		float64(in.TechnicalFeasibility)*WeightTechnicalFeasibility +
		float64(in.DoEResults)*WeightDoEResults +
		float64(in.CostEffectiveness)*WeightCostEffectiveness +
		float64(in.Safety)*WeightSafety
	return round1(total)
}

func (in ReviewInput) validate() error {
	scores := []struct {
		id    string
		value int
	}{
		{"user_need", in.UserNeed},
		{"technical_feasibility", in.TechnicalFeasibility},
		{"doe_results", in.DoEResults},
		{"cost_effectiveness", in.CostEffectiveness},
		{"safety", in.Safety},
	}
	var bad []string
	for _, s := range scores {
		if s.value < minScore || s.value > maxScore {
			bad = append(bad, s.id)
		}
	}
	if len(bad) > 0 {
		return &lifecycle.Error{Kind: lifecycle.KindInvalidInput, Message: "scores must be between 1 and 10", Detail: bad}
	}
	if !domain.OneOf(in.Recommendation, domain.Recommendations) {
		return lifecycle.Errorf(lifecycle.KindInvalidInput, "recommendation must be one of %s", strings.Join(domain.Recommendations, ", "))
	}
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// reviewStates are the committee stages that accept reviews.
var reviewStates = []string{lifecycle.HDoe3, lifecycle.HDoe4}

// AddReview records one committee member's scorecard.
func (e Engine) AddReview(ctx context.Context, id string, actor domain.Actor, in ReviewInput) (domain.CommitteeReview, error) {
	if err := requireActor(actor); err != nil {
		return domain.CommitteeReview{}, err
	}
	if err := in.validate(); err != nil {
		return domain.CommitteeReview{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CommitteeReview{}, e.storageFailure("begin", err)
	}
	defer tx.Rollback()

	req, err := e.Repo.GetRequirementTx(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.CommitteeReview{}, notFound(id)
	}
	if err != nil {
		return domain.CommitteeReview{}, e.storageFailure("get requirement", err)
	}
	if !domain.OneOf(req.CurrentState, reviewStates) {
		return domain.CommitteeReview{}, lifecycle.Errorf(lifecycle.KindInvalidTransition,
			"committee reviews are accepted at %s and %s only, requirement is at %s", lifecycle.HDoe3, lifecycle.HDoe4, req.CurrentState)
	}
	rv := domain.CommitteeReview{
		ID:                   uuid.NewString(),
		RequirementID:        req.ID,
		ReviewerID:           actor.ID,
		UserNeed:             in.UserNeed,
		TechnicalFeasibility: in.TechnicalFeasibility,
		DoEResults:           in.DoEResults,
		CostEffectiveness:    in.CostEffectiveness,
		Safety:               in.Safety,
		WeightedTotal:        in.WeightedTotal(),
		Recommendation:       in.Recommendation,
		Feedback:             strings.TrimSpace(in.Feedback),
		Conditions:           strings.TrimSpace(in.Conditions),
		CreatedAt:            e.stamp(),
	}
	if err := e.Repo.InsertReviewTx(ctx, tx, rv); err != nil {
		return domain.CommitteeReview{}, e.storageFailure("insert review", err)
	}
	if err := e.events().Append(ctx, tx, events.CommitteeReviewAdded, "requirement", req.ID, actor.ID, events.EventPayload{
		"review_id":      rv.ID,
		"state":          req.CurrentState,
		"weighted_total": rv.WeightedTotal,
		"recommendation": rv.Recommendation,
	}); err != nil {
		return domain.CommitteeReview{}, e.storageFailure("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.CommitteeReview{}, e.storageFailure("commit", err)
	}
	return rv, nil
}

// ReviewSummary aggregates the committee reviews of a requirement.
type ReviewSummary struct {
	Count        int                      `json:"count"`
	AverageScore float64                  `json:"average_score"`
	Approve      int                      `json:"approve"`
	Revise       int                      `json:"revise"`
	Reject       int                      `json:"reject"`
	Reviews      []domain.CommitteeReview `json:"reviews"`
}

func (e Engine) Reviews(ctx context.Context, id string) (ReviewSummary, error) {
	if _, err := e.GetRequirement(ctx, id); err != nil {
		return ReviewSummary{}, err
	}
	reviews, err := e.Repo.ListReviews(ctx, id)
	if err != nil {
		return ReviewSummary{}, e.storageFailure("list reviews", err)
	}
	return Summarize(reviews), nil
}

// Summarize averages weighted totals and tallies recommendations.
func Summarize(reviews []domain.CommitteeReview) ReviewSummary {
	sum := ReviewSummary{Count: len(reviews), Reviews: reviews}
	if sum.Reviews == nil {
		sum.Reviews = []domain.CommitteeReview{}
	}
	var total float64
	for _, rv := range reviews {
		total += rv.WeightedTotal
		switch rv.Recommendation {
		case "APPROVE":
			sum.Approve++
		case "REVISE":
			sum.Revise++
		case "REJECT":
			sum.Reject++
		}
	}
	if len(reviews) > 0 {
		sum.AverageScore = round1(total / float64(len(reviews)))
	}
	return sum
}
