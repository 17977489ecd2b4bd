package devstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"obsdash/internal/adapters/recordstore"
)

// Server serves the record store's REST surface over a SQLiteStore. Paths
// and payload shapes match what the dashboard's client sends; the list name
// segment is accepted but not interpreted, since the devstore holds exactly
// one list.
type Server struct {
	store *SQLiteStore
}

// NewHandler builds the devstore's HTTP handler.
func NewHandler(store *SQLiteStore) http.Handler {
	s := &Server{store: store}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /lists/{list}/items", s.handleListItems)
	mux.HandleFunc("POST /lists/{list}/items", s.handleCreateItem)
	mux.HandleFunc("PATCH /lists/{list}/items/{id}", s.handleUpdateItem)
	mux.HandleFunc("DELETE /lists/{list}/items/{id}", s.handleDeleteItem)
	mux.HandleFunc("GET /lists/{list}/fields/{field}", s.handleFieldChoices)
	mux.HandleFunc("GET /groups/byname/{name}/users/{id}", s.handleGroupMember)
	mux.HandleFunc("GET /groups/owners/users/{id}", s.handleOwnerMember)
	mux.HandleFunc("GET /users/{id}", s.handleUser)
	mux.HandleFunc("GET /files", s.handleFile)
	mux.HandleFunc("POST /email/send", s.handleSendMail)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// mapStoreError converts sql.ErrNoRows to 404 and everything else to 500.
func mapStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	slog.Error("devstore_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListItems(r.Context())
	if err != nil {
		mapStoreError(w, err)
		return
	}
	if items == nil {
		items = []recordstore.WireItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": items})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var item recordstore.WireItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	stored, err := s.store.InsertItem(r.Context(), item)
	if err != nil {
		mapStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}
	var item recordstore.WireItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	stored, err := s.store.UpdateItem(r.Context(), id, item)
	if err != nil {
		mapStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}
	if err := s.store.DeleteItem(r.Context(), id); err != nil {
		mapStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFieldChoices(w http.ResponseWriter, r *http.Request) {
	choices, err := s.store.FieldChoices(r.Context(), r.PathValue("field"))
	if err != nil {
		mapStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"Choices": choices})
}

// handleGroupMember answers a membership probe: 200 iff the user belongs to
// the named group, 404 otherwise.
func (s *Server) handleGroupMember(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	member, err := s.store.IsGroupMember(r.Context(), r.PathValue("name"), userID)
	if err != nil {
		mapStoreError(w, err)
		return
	}
	if !member {
		http.Error(w, "not a member", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"Id": userID})
}

func (s *Server) handleOwnerMember(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	member, err := s.store.IsOwner(r.Context(), userID)
	if err != nil {
		mapStoreError(w, err)
		return
	}
	if !member {
		http.Error(w, "not a member", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"Id": userID})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	u, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		mapStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	content, err := s.store.GetFile(r.Context(), path)
	if err != nil {
		mapStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(content)
}

func (s *Server) handleSendMail(w http.ResponseWriter, r *http.Request) {
	var msg struct {
		To      []string `json:"To"`
		Subject string   `json:"Subject"`
		Body    string   `json:"Body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if len(msg.To) == 0 || msg.Subject == "" {
		http.Error(w, "recipients and subject are required", http.StatusBadRequest)
		return
	}
	if err := s.store.RecordMail(r.Context(), strings.Join(msg.To, ";"), msg.Subject, msg.Body); err != nil {
		mapStoreError(w, err)
		return
	}
	slog.Info("devstore_mail_logged", "to", msg.To, "subject", msg.Subject)
	w.WriteHeader(http.StatusAccepted)
}
