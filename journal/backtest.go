package journal

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
	"time"
)

// BacktestRun mirrors the runs table.
type BacktestRun struct {
	RunID      string    `json:"run_id"`
	Created    time.Time `json:"created"`
	Strategy   string    `json:"strategy"`
	Params     string    `json:"params"`
	Dataset    string    `json:"dataset"`
	Symbol     string    `json:"symbol"`
	Resolution string    `json:"resolution"`
	Bars       int       `json:"bars"`

	InitialCash float64 `json:"initial_cash"`
	FinalEquity float64 `json:"final_equity"`

	ReturnPct    float64 `json:"return_pct"`
	MaxDDPct     float64 `json:"max_dd_pct"`
	Sharpe       float64 `json:"sharpe"`
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"` // percent
	ProfitFactor float64 `json:"profit_factor"`

	// StopReason is empty when the run reached the last bar.
	StopReason string `json:"stop_reason,omitempty"`

	// Org-only; not stored.
	Notes []string `json:"-"`
}

func (r BacktestRun) NetPL() float64 { return r.FinalEquity - r.InitialCash }

var backtestOrgFuncs = template.FuncMap{
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"capDD": func(x float64) float64 { return min(x, 100) },
}

var backtestOrg = template.Must(template.New("backtest").Funcs(backtestOrgFuncs).Parse(BacktestOrgTemplate))

// FormatRunOrg renders a run as an Org-mode entry.
func FormatRunOrg(r BacktestRun) (string, error) {
	var buf bytes.Buffer
	if err := backtestOrg.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("journal: org template: %w", err)
	}
	return buf.String(), nil
}

// FormatRunWithTradesOrg renders the run entry followed by its trades.
func FormatRunWithTradesOrg(r BacktestRun, trades []TradeRecord) (string, error) {
	s, err := FormatRunOrg(r)
	if err != nil {
		return "", err
	}
	if len(trades) > 0 {
		s += "\n" + FormatTradesOrg(trades)
	}
	return s, nil
}

// WriteOrg writes the run's Org entry, followed by its trades, to path.
func (r BacktestRun) WriteOrg(path string, trades []TradeRecord) error {
	s, err := FormatRunWithTradesOrg(r, trades)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0644)
}

const BacktestOrgTemplate = `* BACKTEST: {{.Strategy}} {{if .Symbol}}{{.Symbol}}{{else}}{{.Dataset}}{{end}} {{.Resolution}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:PARAMS:      {{.Params}}
:RESOLUTION:  {{.Resolution}}
:SYMBOL:      {{if .Symbol}}{{.Symbol}}{{else}}-{{end}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:BARS:        {{.Bars}}
:START_BAL:   {{printf "%.2f" .InitialCash}}
:END_BAL:     {{printf "%.2f" .FinalEquity}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" (capDD .MaxDDPct)}}
:SHARPE:      {{printf "%.3f" .Sharpe}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRate}}
:PROFIT_FAC:  {{if ne .ProfitFactor 0.0}}{{printf "%.2f" .ProfitFactor}}{{else}}-{{end}}
{{- if .StopReason}}
:STOPPED:     {{.StopReason}}
{{- end}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetPL}}*
- Return:           *{{printf "%.2f" .ReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" (capDD .MaxDDPct)}}%*
- Sharpe:           *{{printf "%.3f" .Sharpe}}*
- Win Rate:         *{{printf "%.2f" .WinRate}}%*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |
{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
