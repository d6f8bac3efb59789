package bridge

import (
	"encoding/json"
	"fmt"
	"log"

	"ghostkeys/internal/config"
	"ghostkeys/internal/focus"
	"ghostkeys/internal/protocol"

	"github.com/atotto/clipboard"
)

// registerCommands fills the named-command table the invoke protocol
// dispatches against.
func (s *Server) registerCommands() {
	s.commands = map[string]commandFunc{
		protocol.CmdTypeText:      s.cmdTypeText,
		protocol.CmdTypeSnippet:   s.cmdTypeSnippet,
		protocol.CmdTypeClipboard: s.cmdTypeClipboard,
		protocol.CmdCancel:        s.cmdCancel,
		protocol.CmdGetStatus:     s.cmdGetStatus,
		protocol.CmdGetConfig:     s.cmdGetConfig,
		protocol.CmdSetConfig:     s.cmdSetConfig,
		protocol.CmdGetFocus:      s.cmdGetFocus,
	}
}

// decodeParams unmarshals command parameters; an absent payload leaves the
// target at its zero value so parameterless calls work.
func decodeParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

func (s *Server) cmdTypeText(params json.RawMessage) (interface{}, error) {
	var p protocol.TypeTextParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	jobID, err := s.SubmitText(p.Text, "ws", p.DelayMS, p.IntervalMS)
	if err != nil {
		return nil, err
	}
	return protocol.JobRef{JobID: jobID}, nil
}

func (s *Server) cmdTypeSnippet(params json.RawMessage) (interface{}, error) {
	var p protocol.TypeSnippetParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	snippet := s.configMgr.GetSnippet(p.Name)
	if snippet == nil {
		return nil, fmt.Errorf("snippet not found: %s", p.Name)
	}

	jobID, err := s.SubmitText(snippet.Text, "snippet", nil, nil)
	if err != nil {
		return nil, err
	}
	return protocol.JobRef{JobID: jobID}, nil
}

func (s *Server) cmdTypeClipboard(params json.RawMessage) (interface{}, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read clipboard: %w", err)
	}

	jobID, err := s.SubmitText(text, "clipboard", nil, nil)
	if err != nil {
		return nil, err
	}
	return protocol.JobRef{JobID: jobID}, nil
}

func (s *Server) cmdCancel(params json.RawMessage) (interface{}, error) {
	var p protocol.CancelParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	n, err := s.CancelTyping(p.JobID)
	if err != nil {
		return nil, err
	}
	return protocol.CancelResult{Canceled: n}, nil
}

func (s *Server) cmdGetStatus(params json.RawMessage) (interface{}, error) {
	return s.engine.Status(), nil
}

func (s *Server) cmdGetConfig(params json.RawMessage) (interface{}, error) {
	return s.configMgr.Get(), nil
}

func (s *Server) cmdSetConfig(params json.RawMessage) (interface{}, error) {
	var newCfg config.Config
	if err := decodeParams(params, &newCfg); err != nil {
		return nil, err
	}

	s.configMgr.Set(&newCfg)
	if err := s.configMgr.Save(); err != nil {
		log.Printf("Bridge: Failed to save config from set_config: %v", err)
		return nil, fmt.Errorf("save configuration: %w", err)
	}
	s.wsMgr.BroadcastEvent(protocol.EventConfigChanged, nil)

	return map[string]string{"status": "ok"}, nil
}

func (s *Server) cmdGetFocus(params json.RawMessage) (interface{}, error) {
	target, err := focus.Current()
	if err != nil {
		return nil, err
	}
	return protocol.FocusPayload{App: target.App, Title: target.Title}, nil
}
