package eligibility

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vaxflow/vaxflow/internal/domain/child"
	"github.com/vaxflow/vaxflow/internal/domain/vaccine"
)

// Service assembles the evaluator's inputs from the stores and runs it.
type Service struct {
	vaccines *vaccine.Service
	children *child.Service
}

func NewService(vaccines *vaccine.Service, children *child.Service) *Service {
	return &Service{vaccines: vaccines, children: children}
}

// EvaluateFor loads the child, the vaccine with its validated rule chain, and
// the dose history, then runs the pure evaluator for candidateDate.
func (s *Service) EvaluateFor(ctx context.Context, childID, vaccineID uuid.UUID, candidateDate time.Time) (Decision, error) {
	ch, err := s.children.GetChild(ctx, childID)
	if err != nil {
		return Decision{}, err
	}
	v, rs, err := s.vaccines.RuleSet(ctx, vaccineID)
	if err != nil {
		return Decision{}, err
	}
	history, err := s.children.History(ctx, childID, vaccineID)
	if err != nil {
		return Decision{}, err
	}

	parentStarted := true
	if v.ParentID != nil {
		parentHistory, err := s.children.History(ctx, childID, *v.ParentID)
		if err != nil {
			return Decision{}, err
		}
		parentStarted = len(parentHistory) > 0
	}

	return Evaluate(Input{
		BirthDate:     ch.DateOfBirth,
		CandidateDate: candidateDate,
		Vaccine:       v,
		Rules:         rs,
		History:       history,
		ParentStarted: parentStarted,
	}), nil
}
