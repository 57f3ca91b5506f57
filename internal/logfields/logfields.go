package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyMode       = "mode"
	KeyCategory   = "category"
	KeyStage      = "stage"
	KeyStep       = "step"
	KeyPath       = "path"
	KeyFiles      = "files"
	KeyOp         = "op"
	KeyDurationMS = "duration_ms"
	KeyState      = "state"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyUserAgent  = "user_agent"
	KeyRemoteAddr = "remote_addr"
	KeyPort       = "port"
	KeyClients    = "clients"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr        { return slog.String(KeyBuildID, id) }
func Mode(m string) slog.Attr            { return slog.String(KeyMode, m) }
func Category(c string) slog.Attr        { return slog.String(KeyCategory, c) }
func Stage(name string) slog.Attr        { return slog.String(KeyStage, name) }
func Step(name string) slog.Attr         { return slog.String(KeyStep, name) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func Files(n int) slog.Attr              { return slog.Int(KeyFiles, n) }
func Op(op string) slog.Attr             { return slog.String(KeyOp, op) }
func State(s string) slog.Attr           { return slog.String(KeyState, s) }
func Method(m string) slog.Attr          { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr          { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr      { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(addr string) slog.Attr   { return slog.String(KeyRemoteAddr, addr) }
func Port(p int) slog.Attr               { return slog.Int(KeyPort, p) }
func Clients(n int) slog.Attr            { return slog.Int(KeyClients, n) }
func DurationMS(ms float64) slog.Attr    { return slog.Float64(KeyDurationMS, ms) }
func Duration(d time.Duration) slog.Attr { return DurationMS(float64(d.Microseconds()) / 1000) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
