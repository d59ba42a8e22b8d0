package render

import "github.com/rs/zerolog"

// Log writes payloads to a zerolog logger. It is the default rendering
// surface for the foreground watch flow.
type Log struct {
	logger zerolog.Logger
}

// NewLog builds a log renderer.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "render_log").Logger()}
}

// Ready logs the one-time initialisation payload.
func (l *Log) Ready(p ReadyPayload) {
	evt := l.logger.Info().
		Str("pair", p.Pair).
		Str("display_name", p.DisplayName)
	if p.LogoURL != "" {
		evt = evt.Str("logo_url", p.LogoURL)
	}
	evt.Msg("tracker ready")
}

// Update logs the per-tick payload.
func (l *Log) Update(p UpdatePayload) {
	l.logger.Info().
		Str("pair", p.Pair).
		Str("elapsed", p.Elapsed).
		Str("price", p.Price).
		Str("change_from_start", p.ChangeFromStart).
		Str("net_change_from_start", p.NetChangeFromStart).
		Str("change_1m", p.Change1m).
		Str("change_5m", p.Change5m).
		Str("current_value", p.CurrentValue).
		Str("target_value", p.TargetValue).
		Str("session_low", p.SessionLow).
		Str("session_high", p.SessionHigh).
		Bool("sell_alert", p.SellAlert).
		Bool("buy_alert", p.BuyAlert).
		Msg("tick")
}

var _ Renderer = (*Log)(nil)
