package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/mesh-intelligence/params/internal/exchange"
	"github.com/mesh-intelligence/params/pkg/types"
)

// paramView is the JSON shape of a parameter in command output. Value is
// omitted unless the command prints values.
type paramView struct {
	Slug          string                     `json:"slug"`
	Name          string                     `json:"name"`
	ValueType     types.ValueType            `json:"value_type"`
	Value         *string                    `json:"value,omitempty"`
	Description   string                     `json:"description,omitempty"`
	IsGlobal      bool                       `json:"is_global"`
	EnableCypher  bool                       `json:"enable_cypher"`
	EnableHistory bool                       `json:"enable_history"`
	Validators    []exchange.ValidatorRecord `json:"validators"`
	CreatedAt     time.Time                  `json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
}

func newParamView(p *types.Parameter) paramView {
	return paramView{
		Slug:          p.Slug,
		Name:          p.Name,
		ValueType:     p.ValueType,
		Description:   p.Description,
		IsGlobal:      p.IsGlobal,
		EnableCypher:  p.EnableCypher,
		EnableHistory: p.EnableHistory,
		Validators:    exchange.ToRecord(p, "").Validators,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError("marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// printParams writes a table of parameters.
func printParams(w io.Writer, params []*types.Parameter) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tTYPE\tNAME\tFLAGS")
	for _, p := range params {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Slug, p.ValueType, p.Name, paramFlags(p))
	}
	tw.Flush()
}

func paramFlags(p *types.Parameter) string {
	out := ""
	for _, f := range []struct {
		on   bool
		name string
	}{
		{p.IsGlobal, "global"},
		{p.EnableCypher, "cypher"},
		{p.EnableHistory, "history"},
	} {
		if !f.on {
			continue
		}
		if out != "" {
			out += ","
		}
		out += f.name
	}
	if out == "" {
		return "-"
	}
	return out
}
