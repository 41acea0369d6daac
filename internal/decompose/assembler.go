package decompose

import (
	"context"

	"github.com/ShayCichocki/promptsplit/internal/backend"
	"github.com/ShayCichocki/promptsplit/internal/stages"
	"github.com/ShayCichocki/promptsplit/pkg/models"
)

// assembler builds finished subtask records from the outputs of earlier stages.
// It only reads the registry; every constraint it sees must already be resolved.
type assembler struct {
	session  backend.Completer
	registry *Registry
	// positions maps a constraint key to its 0-based position in the global list.
	positions map[string]int
	external  []string
}

// assemble produces the Subtask record for one subtask.
func (a *assembler) assemble(ctx context.Context, raw stages.SubtaskPromptConstraints) (models.Subtask, error) {
	occurrences := make([]models.ConstraintOccurrence, 0, len(raw.Constraints))
	for _, c := range raw.Constraints {
		pos, ok := a.positions[a.registry.Key(c)]
		if !ok {
			return models.Subtask{}, stageError(PhaseAssemble, raw.Tag, &stages.ExtractionError{
				Stage: stages.StageConstraintAssign,
				Tag:   raw.Tag,
				Err:   ErrConstraintNotResolved,
			})
		}
		occ, err := a.registry.Occurrence(c, pos)
		if err != nil {
			return models.Subtask{}, stageError(PhaseAssemble, raw.Tag, err)
		}
		occurrences = append(occurrences, occ)
	}

	inputs, deps := ScanVariables(raw.PromptTemplate, a.external)

	gen, err := stages.GeneralInstructions(ctx, a.session, raw.PromptTemplate)
	if err != nil {
		return models.Subtask{}, stageError(PhaseAssemble, raw.Tag, err)
	}
	instructions, err := gen.Parse()
	if err != nil {
		return models.Subtask{}, stageError(PhaseAssemble, raw.Tag, err)
	}

	return models.Subtask{
		Description:         raw.Description,
		Tag:                 raw.Tag,
		Constraints:         occurrences,
		PromptTemplate:      raw.PromptTemplate,
		GeneralInstructions: instructions,
		InputVarsRequired:   inputs,
		DependsOn:           deps,
	}, nil
}
