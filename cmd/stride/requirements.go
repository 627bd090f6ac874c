package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stride/internal/config"
	"stride/internal/domain"
	"stride/internal/engine"
	"stride/internal/lifecycle"
)

func requirementCmd() *cobra.Command {
	req := &cobra.Command{
		Use:     "requirement",
		Aliases: []string{"req"},
		Short:   "Manage requirements",
		Long:    "Requirements are device needs moving through the pipeline. Create them here, then move them with 'stride advance'.",
	}
	req.AddCommand(requirementCreateCmd())
	req.AddCommand(requirementListCmd())
	req.AddCommand(requirementShowCmd())
	req.AddCommand(requirementHistoryCmd())
	req.AddCommand(requirementFeedbackCmd())
	return req
}

func requirementCreateCmd() *cobra.Command {
	var in engine.RequirementInput
	var market, target float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Capture a requirement at S1",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("market-price") {
				in.MarketPrice = &market
			}
			if cmd.Flags().Changed("target-price") {
				in.TargetPrice = &target
			}
			return withActor(cmd.Context(), config.PermRequirementCreate, func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				req, err := e.CreateRequirement(ctx, actor, in)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(req)
				}
				fmt.Printf("Created %s at %s\n", req.ID, req.CurrentState)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "device title")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&in.SourceType, "source", "", "source type ("+strings.Join(domain.SourceTypes, ", ")+")")
	cmd.Flags().StringVar(&in.Priority, "priority", "", "priority (P1, P2, P3; default P2)")
	cmd.Flags().StringVar(&in.TechLevel, "tech-level", "", "tech level (LOW, MEDIUM, HIGH; default MEDIUM)")
	cmd.Flags().StringSliceVar(&in.TherapyDomains, "therapy", nil, "therapy domains")
	cmd.Flags().StringSliceVar(&in.DisabilityTypes, "disability", nil, "disability types")
	cmd.Flags().StringSliceVar(&in.GapFlags, "gap", nil, "gap flags (RED, BLUE)")
	cmd.Flags().Float64Var(&market, "market-price", 0, "market price")
	cmd.Flags().Float64Var(&target, "target-price", 0, "target price")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func requirementListCmd() *cobra.Command {
	var opts engine.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requirements, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermRequirementRead, func(ctx context.Context, e engine.Engine, _ domain.Actor) error {
				items, next, err := e.ListRequirements(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"items": items, "next_cursor": next})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "State", "Priority", "Path", "Rev"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, r.Title, r.CurrentState, r.Priority, r.PathAssignment, r.RevisionNumber})
				}
				tw.Render()
				if next != "" {
					fmt.Printf("more: --cursor %s\n", next)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.State, "state", "", "state filter")
	cmd.Flags().StringVar(&opts.Phase, "phase", "", "phase filter")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&opts.Path, "path", "", "path filter (INTERNAL, DESIGNATHON)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "page size")
	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "page cursor")
	return cmd
}

func requirementShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a requirement with its next states and aging",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermRequirementRead, func(ctx context.Context, e engine.Engine, _ domain.Actor) error {
				detail, err := e.Describe(ctx, args[0], time.Now())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(detail)
				}
				r := detail.Requirement
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendRows([]table.Row{
					{"ID", r.ID},
					{"Title", r.Title},
					{"State", r.CurrentState},
					{"Source", r.SourceType},
					{"Priority", r.Priority},
					{"Tech level", r.TechLevel},
					{"Path", r.PathAssignment},
					{"Revision", r.RevisionNumber},
					{"In state since", detail.EnteredAt},
					{"Days in phase", fmt.Sprintf("%d / %d", detail.Aging.DaysInPhase, detail.Aging.Threshold)},
					{"Next", stateIDs(detail.NextStates)},
				})
				tw.Render()
				return nil
			})
		},
	}
}

func requirementHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Transition history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermRequirementRead, func(ctx context.Context, e engine.Engine, _ domain.Actor) error {
				items, err := e.History(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"At", "From", "To", "Actor", "Note"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.CreatedAt, t.FromState, t.ToState, t.ActorID, t.Note})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func requirementFeedbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <id>",
		Short: "Phase feedback recorded with each transition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermRequirementRead, func(ctx context.Context, e engine.Engine, _ domain.Actor) error {
				items, err := e.Feedback(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrText(items)
			})
		},
	}
}

func statesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "states",
		Short: "List pipeline states and their aging thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool("json") {
				return printJSON(lifecycle.States())
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Label", "Phase", "Aging (days)", "Next (unassigned path)"})
			for _, s := range lifecycle.States() {
				next := strings.Join(lifecycle.NextStates(s.ID, lifecycle.PathUnset), ", ")
				if lifecycle.RequiresPathAssignment(s.ID) {
					next = "assign path"
				}
				threshold := fmt.Sprint(lifecycle.ThresholdDays(s.ID))
				if lifecycle.IsTerminal(s.ID) {
					threshold = "-"
				}
				tw.AppendRow(table.Row{s.ID, s.Label, s.Phase, threshold, next})
			}
			tw.Render()
			return nil
		},
	}
}

func nextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next <id>",
		Short: "Show the states a requirement may move to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermRequirementRead, func(ctx context.Context, e engine.Engine, _ domain.Actor) error {
				next, err := e.NextStates(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(next)
				}
				if len(next) == 0 {
					fmt.Println("no permitted next states")
					return nil
				}
				for _, s := range next {
					fmt.Printf("%s\t%s\n", s.ID, s.Label)
				}
				return nil
			})
		},
	}
}

func gatesCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "gates",
		Short: "Show gate criteria and phase fields for a transition",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !lifecycle.IsKnown(from) || !lifecycle.IsKnown(to) {
				return fmt.Errorf("unknown state in %s->%s", from, to)
			}
			gates := lifecycle.GateCriteria(from, to)
			fields := lifecycle.PhaseFields(from, to)
			if viper.GetBool("json") {
				return printJSON(map[string]any{"gates": gates, "fields": fields})
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Kind", "ID", "Label", "Required", "Options"})
			for _, g := range gates {
				tw.AppendRow(table.Row{"gate", g.ID, g.Label, g.Required, ""})
			}
			for _, f := range fields {
				tw.AppendRow(table.Row{string(f.Type), f.ID, f.Label, f.Required, strings.Join(f.Options, " | ")})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source state")
	cmd.Flags().StringVar(&to, "to", "", "target state")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func advanceCmd() *cobra.Command {
	var in lifecycle.AdvanceInput
	var gates []string
	cmd := &cobra.Command{
		Use:   "advance <id>",
		Short: "Advance a requirement to a permitted next state",
		Long: `Advance checks, in order: the target is a permitted next state, every
required gate is attested (--gate), every required phase field is filled
(--field id=value), and notes are present (--notes). See 'stride gates'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Gates = map[string]bool{}
			for _, g := range gates {
				in.Gates[strings.TrimSpace(g)] = true
			}
			return withActor(cmd.Context(), config.PermRequirementAdvance, func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				req, err := e.Advance(ctx, args[0], actor, in)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(req)
				}
				fmt.Printf("%s is now at %s (revision %d)\n", req.ID, req.CurrentState, req.RevisionNumber)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.To, "to", "", "target state")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "phase notes")
	cmd.Flags().StringArrayVar(&in.BlockersResolved, "blocker", nil, "resolved blocker (repeatable)")
	cmd.Flags().StringArrayVar(&in.KeyDecisions, "decision", nil, "key decision (repeatable)")
	cmd.Flags().StringArrayVar(&gates, "gate", nil, "attested gate criterion id (repeatable)")
	cmd.Flags().StringToStringVar(&in.PhaseData, "field", nil, "phase field value id=value (repeatable)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func assignPathCmd() *cobra.Command {
	var path, justification string
	cmd := &cobra.Command{
		Use:   "assign-path <id>",
		Short: "Choose INTERNAL or DESIGNATHON for a requirement at S4",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermPathAssign, func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				req, err := e.AssignPath(ctx, args[0], actor, lifecycle.Path(strings.ToUpper(path)), justification)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(req)
				}
				fmt.Printf("%s path set to %s\n", req.ID, req.PathAssignment)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "INTERNAL or DESIGNATHON")
	cmd.Flags().StringVar(&justification, "justification", "", "why this path")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func reviewCmd() *cobra.Command {
	rv := &cobra.Command{Use: "review", Short: "Committee reviews"}
	rv.AddCommand(reviewAddCmd())
	rv.AddCommand(reviewListCmd())
	return rv
}

func reviewAddCmd() *cobra.Command {
	var in engine.ReviewInput
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Record a committee review (H-DOE-3 or H-DOE-4)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Recommendation = strings.ToUpper(in.Recommendation)
			return withActor(cmd.Context(), config.PermReviewCreate, func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				rv, err := e.AddReview(ctx, args[0], actor, in)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rv)
				}
				fmt.Printf("Review %s recorded: %.1f (%s)\n", rv.ID, rv.WeightedTotal, rv.Recommendation)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&in.UserNeed, "user-need", 0, "user need score 1-10")
	cmd.Flags().IntVar(&in.TechnicalFeasibility, "feasibility", 0, "technical feasibility score 1-10")
	cmd.Flags().IntVar(&in.DoEResults, "doe", 0, "DoE results score 1-10")
	cmd.Flags().IntVar(&in.CostEffectiveness, "cost", 0, "cost effectiveness score 1-10")
	cmd.Flags().IntVar(&in.Safety, "safety", 0, "safety score 1-10")
	cmd.Flags().StringVar(&in.Recommendation, "recommendation", "", "APPROVE, REVISE or REJECT")
	cmd.Flags().StringVar(&in.Feedback, "feedback", "", "feedback")
	cmd.Flags().StringVar(&in.Conditions, "conditions", "", "conditions")
	_ = cmd.MarkFlagRequired("recommendation")
	return cmd
}

func reviewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <id>",
		Short: "List committee reviews with the average score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermReviewRead, func(ctx context.Context, e engine.Engine, _ domain.Actor) error {
				sum, err := e.Reviews(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Reviewer", "Need", "Feas.", "DoE", "Cost", "Safety", "Total", "Rec."})
				for _, r := range sum.Reviews {
					tw.AppendRow(table.Row{r.ReviewerID, r.UserNeed, r.TechnicalFeasibility, r.DoEResults, r.CostEffectiveness, r.Safety, r.WeightedTotal, r.Recommendation})
				}
				tw.AppendFooter(table.Row{"average", "", "", "", "", "", sum.AverageScore,
					fmt.Sprintf("%d/%d/%d", sum.Approve, sum.Revise, sum.Reject)})
				tw.Render()
				return nil
			})
		},
	}
}

func agingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aging",
		Short: "Requirements past their phase threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermRequirementRead, func(ctx context.Context, e engine.Engine, _ domain.Actor) error {
				items, err := e.AgingReport(ctx, time.Now())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "State", "Days", "Threshold", "Overdue by"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.Requirement.ID, a.Requirement.Title, a.Requirement.CurrentState, a.DaysInPhase, a.Threshold, a.OverdueBy})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func countsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Requirement counts by phase and state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermRequirementRead, func(ctx context.Context, e engine.Engine, _ domain.Actor) error {
				counts, err := e.Counts(ctx, time.Now())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Phase", "State", "Count"})
				for _, s := range lifecycle.States() {
					tw.AppendRow(table.Row{s.Phase, s.ID, counts.ByState[s.ID]})
				}
				tw.AppendFooter(table.Row{"total", fmt.Sprintf("aging %d", counts.Aging), counts.Total})
				tw.Render()
				return nil
			})
		},
	}
}

func stateIDs(states []lifecycle.StateInfo) string {
	ids := make([]string, 0, len(states))
	for _, s := range states {
		ids = append(ids, s.ID)
	}
	return strings.Join(ids, ", ")
}
