package reports

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// SummaryTemplate is the default text rendered after a run. Bindings:
// run_id, status, started_at, duration_ms, error, stages (name, status,
// duration_ms, rows, error), tables (name, rows), checks (table, issue,
// count, error) and issues (the sum of check counts).
const SummaryTemplate = `Run {{ run_id }} {{ status | upcase }} in {{ duration_ms | seconds }}
{% if error != "" %}error: {{ error }}
{% endif %}
Stages:
{% for s in stages %}  {{ s.name | pad: 16 }} {{ s.status | pad: 8 }} {{ s.duration_ms | seconds | pad: 8 }}{% if s.rows > 0 %} {{ s.rows }} rows{% endif %}{% if s.error != "" %} {{ s.error }}{% endif %}
{% endfor %}{% if tables.size > 0 %}
Tables:
{% for t in tables %}  {{ t.name | pad: 16 }} {{ t.rows }}
{% endfor %}{% endif %}{% if checks.size > 0 %}
Quality ({{ issues }} issues):
{% for c in checks %}  {{ c.table | pad: 14 }} {{ c.count | pad: 6 }} {{ c.issue }}{% if c.error != "" %} [{{ c.error }}]{% endif %}
{% endfor %}{% endif %}`

// SummaryRenderer renders run summaries through a Liquid engine.
type SummaryRenderer struct {
	engine *liquid.Engine
	once   sync.Once
	tpl    *liquid.Template
	err    error
	source string
}

// NewSummaryRenderer compiles source lazily; an empty source uses SummaryTemplate.
func NewSummaryRenderer(source string) *SummaryRenderer {
	if source == "" {
		source = SummaryTemplate
	}
	engine := liquid.NewEngine()

	// Milliseconds as seconds: {{ duration_ms | seconds }}
	engine.RegisterFilter("seconds", func(ms int64) string {
		return fmt.Sprintf("%.2fs", float64(ms)/1000)
	})

	// Right-pad to a column: {{ name | pad: 16 }}
	engine.RegisterFilter("pad", func(value any, width int) string {
		s := fmt.Sprintf("%v", value)
		if n := width - len(s); n > 0 {
			return s + strings.Repeat(" ", n)
		}
		return s
	})

	return &SummaryRenderer{engine: engine, source: source}
}

// Render fills the template with bindings.
func (r *SummaryRenderer) Render(bindings map[string]any) (string, error) {
	r.once.Do(func() {
		tpl, err := r.engine.ParseString(r.source)
		if err != nil {
			r.err = fmt.Errorf("parse summary template: %w", err)
			return
		}
		r.tpl = tpl
	})
	if r.err != nil {
		return "", r.err
	}
	out, err := r.tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return out, nil
}
