package api

import (
	"net/http"
	"strings"

	"github.com/tecbitlyfe/bitlyfe/internal/chat"
	"github.com/tecbitlyfe/bitlyfe/internal/metrics"
	"github.com/tecbitlyfe/bitlyfe/internal/models"
	"github.com/tecbitlyfe/bitlyfe/internal/store"
)

// --- chat ---

// chatRequest is the body accepted by POST /chat.
type chatRequest struct {
	Message        string `json:"message"`
	Character      string `json:"character"`
	UserID         string `json:"user_id"`
	Provider       string `json:"provider"`
	IncludeContext *bool  `json:"include_context"` // default true
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	include := req.IncludeContext == nil || *req.IncludeContext

	reply, err := s.chat.Chat(r.Context(), chat.Request{
		UserID:         req.UserID,
		Message:        req.Message,
		Character:      req.Character,
		Provider:       req.Provider,
		IncludeContext: include,
	})
	if err != nil {
		s.writeFailure(w, err, "chat failed")
		return
	}
	s.writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	convs, err := s.chat.History(r.Context(), r.URL.Query().Get("user_id"), limit)
	if err != nil {
		s.writeFailure(w, err, "failed to list conversations")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// --- memory ---

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	userID := s.chat.UserID(r.URL.Query().Get("user_id"))
	stats, err := s.store.MemoryStats(r.Context(), userID)
	if err != nil {
		s.writeFailure(w, err, "failed to get stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// searchRequest is the body accepted by POST /api/memory/search.
type searchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

// searchResponse is returned by the search endpoints.
type searchResponse struct {
	Query   string          `json:"query"`
	Results []models.Memory `json:"results"`
}

func (s *Server) handleSearchQuery(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	q := r.URL.Query()
	s.search(w, r, searchRequest{Query: q.Get("q"), UserID: q.Get("user_id"), Limit: limit})
}

func (s *Server) handleSearchBody(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	s.search(w, r, req)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, req searchRequest) {
	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	results, err := s.store.SearchMemories(r.Context(), s.chat.UserID(req.UserID), req.Query, req.Limit)
	if err != nil {
		s.writeFailure(w, err, "failed to search memories")
		return
	}
	if results == nil {
		results = []models.Memory{}
	}
	s.writeJSON(w, http.StatusOK, searchResponse{Query: req.Query, Results: results})
}

// createMemoryRequest is the body accepted by POST /api/memory/create.
type createMemoryRequest struct {
	UserID     string            `json:"user_id"`
	Content    string            `json:"content"`
	Type       models.MemoryType `json:"type"`
	Importance *float64          `json:"importance"`
	Tags       []string          `json:"tags"`
	Metadata   map[string]any    `json:"metadata"`
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req createMemoryRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Type == "" {
		req.Type = models.MemoryTypeFact
	}
	id, err := s.store.CreateMemory(r.Context(), store.CreateMemoryParams{
		UserID:     s.chat.UserID(req.UserID),
		Content:    req.Content,
		Type:       req.Type,
		Importance: req.Importance,
		Tags:       req.Tags,
		Metadata:   req.Metadata,
	})
	if err != nil {
		s.writeFailure(w, err, "failed to store memory")
		return
	}
	metrics.Inc(metrics.MemoryCreated)
	s.writeJSON(w, http.StatusCreated, map[string]any{"id": id, "stored": true})
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	filter := store.MemoryFilter{
		UserID: s.chat.UserID(r.URL.Query().Get("user_id")),
		Limit:  limit,
	}
	if t := models.MemoryType(r.URL.Query().Get("type")); t != "" {
		if !t.IsValid() {
			s.writeError(w, http.StatusBadRequest, "invalid memory type")
			return
		}
		filter.Type = &t
	}
	mems, err := s.store.GetMemories(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, err, "failed to list memories")
		return
	}
	if mems == nil {
		mems = []models.Memory{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"memories": mems})
}

// --- persona ---

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	list, err := s.personas.List(r.Context())
	if err != nil {
		s.writeFailure(w, err, "failed to list personalities")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"personalities": list})
}

func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	p, err := s.personas.GetActive(r.Context(), s.chat.UserID(r.URL.Query().Get("user_id")))
	if err != nil {
		s.writeFailure(w, err, "failed to get personality")
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// setPersonaRequest is the body accepted by POST /api/persona/current.
type setPersonaRequest struct {
	UserID        string `json:"user_id"`
	PersonalityID string `json:"personality_id"`
}

func (s *Server) handleSetPersona(w http.ResponseWriter, r *http.Request) {
	var req setPersonaRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.PersonalityID == "" {
		s.writeError(w, http.StatusBadRequest, "personality_id is required")
		return
	}
	userID := s.chat.UserID(req.UserID)
	if err := s.personas.SetActive(r.Context(), userID, req.PersonalityID); err != nil {
		s.writeFailure(w, err, "failed to set personality")
		return
	}
	p, err := s.personas.GetActive(r.Context(), userID)
	if err != nil {
		s.writeFailure(w, err, "failed to get personality")
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	userID := s.chat.UserID(r.URL.Query().Get("user_id"))
	profile, err := s.store.GetProfile(r.Context(), userID)
	if err != nil {
		s.writeFailure(w, err, "failed to get player")
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

// setPlayerRequest is the body accepted by POST /api/persona/player.
type setPlayerRequest struct {
	UserID        string `json:"user_id"`
	CompanionName string `json:"companion_name"`
}

func (s *Server) handleSetPlayer(w http.ResponseWriter, r *http.Request) {
	var req setPlayerRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CompanionName) == "" {
		s.writeError(w, http.StatusBadRequest, "companion_name is required")
		return
	}
	ctx := r.Context()
	userID := s.chat.UserID(req.UserID)
	if _, err := s.store.EnsureProfile(ctx, userID, req.CompanionName); err != nil {
		s.writeFailure(w, err, "failed to create player")
		return
	}
	if err := s.store.SetCompanionName(ctx, userID, req.CompanionName); err != nil {
		s.writeFailure(w, err, "failed to update player")
		return
	}
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		s.writeFailure(w, err, "failed to get player")
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

// autofillRequest is the body accepted by POST /api/persona/autofill.
type autofillRequest struct {
	UserID string `json:"user_id"`
	Apply  bool   `json:"apply"`
}

func (s *Server) handleAutofill(w http.ResponseWriter, r *http.Request) {
	var req autofillRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sug, err := s.personas.Autofill(r.Context(), s.chat.UserID(req.UserID), req.Apply)
	if err != nil {
		s.writeFailure(w, err, "failed to autofill persona")
		return
	}
	s.writeJSON(w, http.StatusOK, sug)
}

// --- shares and quests ---

// createShareRequest is the body accepted by POST /api/share.
type createShareRequest struct {
	UserID      string `json:"user_id"`
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	IsPublic    bool   `json:"is_public"`
}

func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	var req createShareRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sc, err := s.store.CreateShare(r.Context(), store.CreateShareParams{
		UserID:      s.chat.UserID(req.UserID),
		ContentType: req.ContentType,
		Content:     req.Content,
		Title:       req.Title,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		s.writeFailure(w, err, "failed to share content")
		return
	}
	s.writeJSON(w, http.StatusCreated, sc)
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	shares, err := s.store.ListPublicShares(r.Context(), limit)
	if err != nil {
		s.writeFailure(w, err, "failed to list shares")
		return
	}
	if shares == nil {
		shares = []models.SharedContent{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"shares": shares})
}

func (s *Server) handleOpenShare(w http.ResponseWriter, r *http.Request) {
	metrics.Inc(metrics.ShareLookups)
	sc, err := s.store.LookupShare(r.Context(), r.PathValue("code"))
	if err != nil {
		s.writeFailure(w, err, "failed to open share")
		return
	}
	s.writeJSON(w, http.StatusOK, sc)
}

// questRequest is the body accepted by POST /api/quest/complete.
type questRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	XP     int64  `json:"xp"`
}

func (s *Server) handleQuest(w http.ResponseWriter, r *http.Request) {
	var req questRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	res, err := s.chat.CompleteQuest(r.Context(), req.UserID, req.Title, req.XP)
	if err != nil {
		s.writeFailure(w, err, "failed to complete quest")
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}
