package tools

import (
	"github.com/erauner12/vaultgw/internal/gateway/vaultfs"
	"github.com/rs/zerolog"
)

// scheduler is the narrow slice of *commit.Coordinator a tool handler
// needs, broken out so tests can inject a fake rather than drive a real
// debounce timer.
type scheduler interface {
	Schedule(description string)
}

// ToolContext provides the resources every vault tool handler needs,
// grounded on the teacher's tools.ToolContext
// (internal/mcpserver/tools/context.go).
type ToolContext struct {
	Logger     *zerolog.Logger
	SessionID  string
	Validator  *vaultfs.Validator
	Mutations  scheduler
}

func NewToolContext(logger *zerolog.Logger, sessionID string, validator *vaultfs.Validator, mutations scheduler) *ToolContext {
	return &ToolContext{
		Logger:    logger,
		SessionID: sessionID,
		Validator: validator,
		Mutations: mutations,
	}
}
