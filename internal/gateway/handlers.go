package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/oshaberi-app/oshaberi/internal/chat"
	"github.com/oshaberi-app/oshaberi/internal/domain"
	"github.com/oshaberi-app/oshaberi/internal/llm"
	"github.com/oshaberi-app/oshaberi/internal/store"
	"github.com/oshaberi-app/oshaberi/internal/version"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// handleChat proxies one completion call to the resolved provider.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}
	for _, m := range req.Messages {
		if err := m.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	completion, err := s.exchange.Chat(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completion)
}

// handleChatFunction executes the trailing function call and re-asks the
// model with the result.
func (s *Server) handleChatFunction(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}

	exchange, err := s.exchange.ChatFunction(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exchange)
}

// handleTokens counts tokens for a message list or a bare string.
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var tokens int
	var messages []domain.Message
	if err := json.Unmarshal(raw, &messages); err == nil {
		tokens = s.counter.Messages(messages)
	} else {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			writeError(w, http.StatusBadRequest, "expected a message list or a string")
			return
		}
		tokens = s.counter.Text(text)
	}
	writeJSON(w, http.StatusOK, map[string]int{"tokens": tokens})
}

// handleModels lists the models a provider serves. Without a provider query
// parameter the provider serving the current model answers.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("provider")

	var provider llm.Provider
	var err error
	if name != "" {
		provider, err = s.table.Provider(name)
	} else {
		provider, err = s.table.Resolve(s.settings.Snapshot().Model)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	models, err := provider.Models(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"models": models})
}

// --- states ---

func validBucket(bucket string) bool {
	return bucket == store.BucketSettings || bucket == store.BucketSessions
}

// handleStatesAll returns every blob in a bucket keyed by id.
func (s *Server) handleStatesAll(w http.ResponseWriter, r *http.Request) {
	bucket := r.PathValue("bucket")
	if !validBucket(bucket) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	all, err := s.states.All(bucket)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// handleStatesGet returns one blob.
func (s *Server) handleStatesGet(w http.ResponseWriter, r *http.Request) {
	bucket := r.PathValue("bucket")
	if !validBucket(bucket) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	blob, err := s.states.Get(bucket, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blob)
}

// handleStatesPut stores one blob. The body carries the blob under "state",
// matching what the SPA sends.
func (s *Server) handleStatesPut(w http.ResponseWriter, r *http.Request) {
	bucket := r.PathValue("bucket")
	if !validBucket(bucket) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var body struct {
		State json.RawMessage `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.State) == 0 {
		writeError(w, http.StatusBadRequest, "state is required")
		return
	}
	if err := s.states.Put(bucket, r.PathValue("id"), body.State); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatesDelete removes one blob.
func (s *Server) handleStatesDelete(w http.ResponseWriter, r *http.Request) {
	bucket := r.PathValue("bucket")
	if !validBucket(bucket) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err := s.states.Delete(bucket, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- conversation ---

// sessionPayload is the wire shape of a session transcript.
type sessionPayload struct {
	ID            string                  `json:"id"`
	SystemMessage string                  `json:"systemMessage"`
	Messages      []displayMessagePayload `json:"messages"`
	State         chat.State              `json:"state"`
}

type displayMessagePayload struct {
	DisplayText string         `json:"displayText"`
	Role        domain.Role    `json:"role"`
	Hidden      bool           `json:"hidden,omitempty"`
	Value       domain.Message `json:"value"`
}

func (s *Server) sessionPayload(sess domain.Session) sessionPayload {
	out := sessionPayload{
		ID:            sess.ID,
		SystemMessage: sess.SystemMessage,
		Messages:      make([]displayMessagePayload, len(sess.Messages)),
		State:         s.ctrl.State(sess.ID),
	}
	for i, m := range sess.Messages {
		out.Messages[i] = displayMessagePayload{
			DisplayText: m.DisplayText,
			Role:        m.Raw.Role,
			Hidden:      m.Hidden,
			Value:       m.Raw,
		}
	}
	return out
}

// handleConversationGet returns the selected session transcript.
func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionPayload(s.sessions.Selected()))
}

// handleConversationSend runs a full turn for the selected session.
func (s *Server) handleConversationSend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.ctrl.Send(r.Context(), body.Message); err != nil {
		writeDomainError(w, err)
		return
	}
	s.persistSessions()
	writeJSON(w, http.StatusOK, s.sessionPayload(s.sessions.Selected()))
}

// handleConversationResend retries the latest user turn.
func (s *Server) handleConversationResend(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Resend(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	s.persistSessions()
	writeJSON(w, http.StatusOK, s.sessionPayload(s.sessions.Selected()))
}

// --- sessions ---

type sessionListPayload struct {
	Sessions []string `json:"sessions"`
	Selected string   `json:"selected"`
}

func (s *Server) sessionList() sessionListPayload {
	return sessionListPayload{Sessions: s.sessions.List(), Selected: s.sessions.SelectedID()}
}

func (s *Server) handleSessionsList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionList())
}

func (s *Server) handleSessionsAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.sessions.Add(body.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	s.persistSessions()
	writeJSON(w, http.StatusCreated, s.sessionList())
}

func (s *Server) handleSessionsGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionPayload(sess))
}

// handleSessionsSelect switches the selected session. The in-flight turn of
// the previously selected session, if any, is abandoned.
func (s *Server) handleSessionsSelect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	prev := s.sessions.SelectedID()
	if err := s.sessions.Select(id); err != nil {
		writeDomainError(w, err)
		return
	}
	if prev != id {
		s.ctrl.Abandon(prev)
	}
	s.persistSessions()
	writeJSON(w, http.StatusOK, s.sessionPayload(s.sessions.Selected()))
}

func (s *Server) handleSessionsRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.ctrl.Abandon(id)
	if err := s.sessions.Remove(id); err != nil {
		writeDomainError(w, err)
		return
	}
	s.persistSessions()
	writeJSON(w, http.StatusOK, s.sessionList())
}

func (s *Server) handleSessionsClear(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.ctrl.Abandon(id)
	if err := s.sessions.Clear(id); err != nil {
		writeDomainError(w, err)
		return
	}
	s.persistSessions()
	sess, err := s.sessions.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionPayload(sess))
}

func (s *Server) handleSessionsSystem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SystemMessage string `json:"systemMessage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := r.PathValue("id")
	if err := s.sessions.SetSystemMessage(id, body.SystemMessage); err != nil {
		writeDomainError(w, err)
		return
	}
	s.persistSessions()
	sess, err := s.sessions.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionPayload(sess))
}

// --- settings ---

type settingsPayload struct {
	Values          any      `json:"values"`
	SupportedModels []string `json:"supportedModels"`
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, settingsPayload{
		Values:          s.settings.Snapshot(),
		SupportedModels: s.settings.SupportedModels(),
	})
}

func (s *Server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	values := s.settings.Snapshot()
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.settings.Apply(values); err != nil {
		writeDomainError(w, err)
		return
	}
	s.persistSettings()
	writeJSON(w, http.StatusOK, settingsPayload{
		Values:          s.settings.Snapshot(),
		SupportedModels: s.settings.SupportedModels(),
	})
}

// persistSessions writes the session snapshot to the state store. Failures
// are logged; the request that triggered the write already succeeded.
func (s *Server) persistSessions() {
	blob, err := s.sessions.Snapshot()
	if err != nil {
		s.log.Error().Err(err).Msg("snapshotting sessions")
		return
	}
	if err := s.states.Put(store.BucketSessions, serverStateID, blob); err != nil {
		s.log.Error().Err(err).Msg("persisting sessions")
	}
}

func (s *Server) persistSettings() {
	blob, err := s.settings.MarshalState()
	if err != nil {
		s.log.Error().Err(err).Msg("snapshotting settings")
		return
	}
	if err := s.states.Put(store.BucketSettings, serverStateID, blob); err != nil {
		s.log.Error().Err(err).Msg("persisting settings")
	}
}
