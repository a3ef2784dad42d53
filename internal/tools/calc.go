package tools

// calc.go registers the three deterministic biochemistry calculators.
//
// The tutor prompt instructs the model to call these instead of doing
// arithmetic itself. Invalid inputs come back as ValidationError results so
// the model can correct its call rather than abort the turn.

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/studybuddy/biochem/internal/biochem"
)

// Tool name constants for the calculators registered with Genkit.
const (
	// CalculatePHName is the Genkit tool name for buffer pH calculation.
	CalculatePHName = "calculate_ph"
	// EnzymeKineticsName is the Genkit tool name for Michaelis-Menten velocity.
	EnzymeKineticsName = "enzyme_kinetics"
	// IsoelectricPointName is the Genkit tool name for amino acid pI.
	IsoelectricPointName = "isoelectric_point"
)

// CalculatePHInput defines input for the calculate_ph tool.
type CalculatePHInput struct {
	PKa               float64 `json:"pKa" jsonschema_description:"pKa of the weak acid"`
	AcidConcentration float64 `json:"acidConcentration" jsonschema_description:"Molar concentration of the weak acid (must be positive)"`
	BaseConcentration float64 `json:"baseConcentration" jsonschema_description:"Molar concentration of the conjugate base (must be positive)"`
}

// EnzymeKineticsInput defines input for the enzyme_kinetics tool.
type EnzymeKineticsInput struct {
	Vmax                   float64 `json:"vmax" jsonschema_description:"Maximum reaction velocity (must be positive)"`
	Km                     float64 `json:"km" jsonschema_description:"Michaelis constant (must be positive)"`
	SubstrateConcentration float64 `json:"substrateConcentration" jsonschema_description:"Substrate concentration (must be positive)"`
}

// IsoelectricPointInput defines input for the isoelectric_point tool.
type IsoelectricPointInput struct {
	PKaValues []float64 `json:"pKaValues" jsonschema_description:"pKa values of the amino acid's ionizable groups (exactly 2 or 3 values)"`
}

// Calculators holds dependencies for the calculator tool handlers.
type Calculators struct {
	logger *slog.Logger
}

// NewCalculators creates a Calculators instance.
func NewCalculators(logger *slog.Logger) (*Calculators, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Calculators{logger: logger}, nil
}

// RegisterCalculators registers the three calculator tools with Genkit.
// Tools are registered with event emission wrappers for streaming support.
func RegisterCalculators(g *genkit.Genkit, c *Calculators) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if c == nil {
		return nil, fmt.Errorf("Calculators is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, CalculatePHName,
			"Calculate the pH of a buffer solution using the Henderson-Hasselbalch equation. "+
				"Requires the pKa of the weak acid and the molar concentrations of the acid and "+
				"its conjugate base (both strictly positive). "+
				"Returns: the buffer pH. Always use this tool for buffer pH questions instead of "+
				"computing the logarithm yourself.",
			WithEvents(CalculatePHName, c.CalculatePH)),
		genkit.DefineTool(g, EnzymeKineticsName,
			"Calculate enzyme reaction velocity using Michaelis-Menten kinetics. "+
				"Requires Vmax, Km and the substrate concentration (all strictly positive). "+
				"Returns: the reaction velocity in the same units as Vmax. Always use this tool "+
				"for kinetics questions instead of computing the ratio yourself.",
			WithEvents(EnzymeKineticsName, c.EnzymeKinetics)),
		genkit.DefineTool(g, IsoelectricPointName,
			"Calculate the isoelectric point (pI) of an amino acid from the pKa values of its "+
				"ionizable groups. Accepts exactly 2 values (no ionizable side chain) or 3 values "+
				"(acidic or basic side chain). "+
				"Returns: the pI and which pKa pair was averaged. Always use this tool for pI "+
				"questions instead of averaging values yourself.",
			WithEvents(IsoelectricPointName, c.IsoelectricPoint)),
	}, nil
}

// invalidInput converts a biochem validation failure into a tool result the
// model can act on.
func invalidInput(err error) Result {
	return Result{
		Status: StatusError,
		Error: &Error{
			Code:    ErrCodeValidation,
			Message: err.Error(),
		},
	}
}

// CalculatePH computes buffer pH via the Henderson-Hasselbalch equation.
func (c *Calculators) CalculatePH(_ *ai.ToolContext, input CalculatePHInput) (Result, error) {
	c.logger.Info("CalculatePH called",
		"pKa", input.PKa, "acid", input.AcidConcentration, "base", input.BaseConcentration)

	ph, err := biochem.BufferPH(input.PKa, input.AcidConcentration, input.BaseConcentration)
	if err != nil {
		if errors.Is(err, biochem.ErrInvalidArgument) {
			c.logger.Warn("CalculatePH rejected input", "error", err)
			return invalidInput(err), nil
		}
		return Result{}, fmt.Errorf("calculating buffer pH: %w", err)
	}

	return Result{
		Status: StatusSuccess,
		Data: map[string]any{
			"ph":       ph,
			"equation": "pH = pKa + log10([A-]/[HA])",
		},
	}, nil
}

// EnzymeKinetics computes reaction velocity via Michaelis-Menten kinetics.
func (c *Calculators) EnzymeKinetics(_ *ai.ToolContext, input EnzymeKineticsInput) (Result, error) {
	c.logger.Info("EnzymeKinetics called",
		"vmax", input.Vmax, "km", input.Km, "substrate", input.SubstrateConcentration)

	velocity, err := biochem.ReactionVelocity(input.Vmax, input.Km, input.SubstrateConcentration)
	if err != nil {
		if errors.Is(err, biochem.ErrInvalidArgument) {
			c.logger.Warn("EnzymeKinetics rejected input", "error", err)
			return invalidInput(err), nil
		}
		return Result{}, fmt.Errorf("calculating reaction velocity: %w", err)
	}

	return Result{
		Status: StatusSuccess,
		Data: map[string]any{
			"velocity": velocity,
			"equation": "v = (Vmax * [S]) / (Km + [S])",
		},
	}, nil
}

// IsoelectricPoint computes the pI of an amino acid from its pKa values.
func (c *Calculators) IsoelectricPoint(_ *ai.ToolContext, input IsoelectricPointInput) (Result, error) {
	c.logger.Info("IsoelectricPoint called", "pKaValues", input.PKaValues)

	pi, err := biochem.IsoelectricPoint(input.PKaValues)
	if err != nil {
		if errors.Is(err, biochem.ErrInvalidArgument) {
			c.logger.Warn("IsoelectricPoint rejected input", "error", err)
			return invalidInput(err), nil
		}
		return Result{}, fmt.Errorf("calculating isoelectric point: %w", err)
	}

	// Classification is recomputed for the explanation; the same sorted
	// values drove the pI above.
	sorted := make([]float64, len(input.PKaValues))
	copy(sorted, input.PKaValues)
	sort.Float64s(sorted)
	class, _ := biochem.ClassifyGroups(sorted)

	return Result{
		Status: StatusSuccess,
		Data: map[string]any{
			"pI":             pi,
			"classification": class.String(),
		},
	}, nil
}
