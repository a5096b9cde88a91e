package devserver

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smartcall/helpdesk-go/internal/model/ticket"
	"github.com/smartcall/helpdesk-go/pkg/utils"
)

// defaultTechnician is the fake on-call technician chamados escalate to.
const defaultTechnician = "Carlos Mendes"

// backendTimeLayout mirrors the production backend's habit of emitting
// UTC timestamps without a zone suffix.
const backendTimeLayout = "2006-01-02T15:04:05.0000000"

// Server bundles the dev server's dependencies.
type Server struct {
	store     *Store
	jwt       *JWTService
	responder Responder
}

// New assembles a dev server.
func New(store *Store, jwtSvc *JWTService, responder Responder) *Server {
	return &Server{store: store, jwt: jwtSvc, responder: responder}
}

// Router wires the fake helpdesk API under /api.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", s.handleRegister)
		api.Post("/auth/login", s.handleLogin)
		api.Post("/auth/logout", s.handleLogout)

		api.Group(func(authed chi.Router) {
			authed.Use(s.jwt.RequireAuth)
			authed.Post("/chamados", s.handleCreateTicket)
			authed.Get("/chamados", s.handleListTickets)
			authed.Get("/chamados/{id}", s.handleGetTicket)
			authed.Get("/chamados/{id}/mensagens/novas", s.handleNewMessages)
			authed.Post("/chamados/{id}/mensagens", s.handleSendMessage)
			authed.Patch("/chamados/{id}/status", s.handleSetStatus)
			authed.Post("/chamados/{id}/escalar", s.handleEscalate)
		})
	})

	return r
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email           string `json:"Email"`
		Password        string `json:"Password"`
		ConfirmPassword string `json:"ConfirmPassword"`
		FullName        string `json:"FullName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	if !strings.Contains(payload.Email, "@") {
		utils.RespondError(w, http.StatusBadRequest, "email inválido")
		return
	}
	if len(payload.Password) < 6 {
		utils.RespondError(w, http.StatusBadRequest, "a senha deve ter no mínimo 6 caracteres")
		return
	}
	if payload.Password != payload.ConfirmPassword {
		utils.RespondError(w, http.StatusBadRequest, "as senhas não conferem")
		return
	}

	user, err := s.store.CreateUser(payload.Email, payload.FullName, payload.Password)
	if err != nil {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}

	s.respondAuth(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"Email"`
		Password string `json:"Password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	user, err := s.store.Authenticate(payload.Email, payload.Password)
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	s.respondAuth(w, http.StatusOK, user)
}

func (s *Server) respondAuth(w http.ResponseWriter, status int, user *User) {
	token, err := s.jwt.GenerateToken(user)
	if err != nil {
		log.Printf("[devserver] token generation failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "falha ao gerar token")
		return
	}

	utils.RespondJSON(w, status, map[string]any{
		"Token": token,
		"User": map[string]string{
			"Id":       user.ID,
			"Email":    user.Email,
			"FullName": user.FullName,
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	// Tokens are stateless; logout only exists so the client flow works.
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MensagemInicial string `json:"MensagemInicial"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	description := strings.TrimSpace(payload.MensagemInicial)
	if len([]rune(description)) < 10 {
		utils.RespondError(w, http.StatusBadRequest, "a descrição deve ter no mínimo 10 caracteres")
		return
	}

	t := s.store.CreateTicket(userID(r), description)

	reply, err := s.responder.Reply(r.Context(), t.Messages, description)
	if err != nil {
		log.Printf("[devserver] responder failed on chamado %d: %v", t.ID, err)
	} else {
		if _, err := s.store.AppendMessage(t.ID, reply, false, ticket.SenderAI); err == nil {
			_ = s.store.SetStatus(t.ID, ticket.StatusInProgress)
		}
	}

	t, err = s.store.Ticket(t.ID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, ticketJSON(t, true))
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	tickets := s.store.TicketsByOwner(userID(r))
	out := make([]map[string]any, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, ticketJSON(t, false))
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTicket(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, ticketJSON(t, true))
}

func (s *Server) handleNewMessages(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTicket(w, r)
	if !ok {
		return
	}

	afterID, _ := strconv.ParseInt(r.URL.Query().Get("afterId"), 10, 64)
	msgs, err := s.store.MessagesAfter(t.ID, afterID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageJSON(m))
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTicket(w, r)
	if !ok {
		return
	}

	var payload struct {
		Message string `json:"Message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	text := strings.TrimSpace(payload.Message)
	if text == "" {
		utils.RespondError(w, http.StatusBadRequest, "mensagem vazia")
		return
	}

	if t.Status == ticket.StatusResolved {
		utils.RespondError(w, http.StatusConflict, "chamado resolvido e bloqueado para novas mensagens")
		return
	}

	userMsg, err := s.store.AppendMessage(t.ID, text, true, ticket.SenderUser)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	response := map[string]any{"UserMessage": messageJSON(userMsg)}

	// Escalated chamados keep accepting user messages, but the AI agent
	// stays out of the conversation once a technician owns it.
	if t.Status != ticket.StatusEscalated {
		history, _ := s.store.MessagesAfter(t.ID, 0)
		if reply, err := s.responder.Reply(r.Context(), history, text); err != nil {
			log.Printf("[devserver] responder failed on chamado %d: %v", t.ID, err)
		} else if botMsg, err := s.store.AppendMessage(t.ID, reply, false, ticket.SenderAI); err == nil {
			response["BotMessage"] = messageJSON(botMsg)
		}
	}

	utils.RespondJSON(w, http.StatusOK, response)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTicket(w, r)
	if !ok {
		return
	}

	// The endpoint takes the bare status label as a JSON string.
	var label string
	if err := json.NewDecoder(r.Body).Decode(&label); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	status, ok := ticket.ParseStatus(label)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "status desconhecido: "+label)
		return
	}

	if err := s.store.SetStatus(t.ID, status); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"Status": status.Label()})
}

func (s *Server) handleEscalate(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTicket(w, r)
	if !ok {
		return
	}

	escalated, err := s.store.Escalate(t.ID, defaultTechnician)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, ticketJSON(escalated, true))
}

// ownedTicket resolves the {id} route param to a chamado owned by the
// authenticated user. Tickets of other users read as not found.
func (s *Server) ownedTicket(w http.ResponseWriter, r *http.Request) (*StoredTicket, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "id de chamado inválido")
		return nil, false
	}

	t, err := s.store.Ticket(id)
	if err != nil || t.OwnerID != userID(r) {
		utils.RespondError(w, http.StatusNotFound, ErrTicketNotFound.Error())
		return nil, false
	}
	return t, true
}

func ticketJSON(t *StoredTicket, includeMessages bool) map[string]any {
	out := map[string]any{
		"Id":                t.ID,
		"Titulo":            t.Title,
		"Status":            t.Status.Label(),
		"AtribuidoATecnico": t.AssignedToTechnician,
		"TecnicoNome":       t.TechnicianName,
		"CriadoEm":          t.CreatedAt.UTC().Format(backendTimeLayout),
	}
	if includeMessages {
		msgs := make([]map[string]any, 0, len(t.Messages))
		for _, m := range t.Messages {
			msgs = append(msgs, messageJSON(m))
		}
		out["Mensagens"] = msgs
	}
	return out
}

func messageJSON(m StoredMessage) map[string]any {
	return map[string]any{
		"Id":         m.ID,
		"Message":    m.Text,
		"IsUser":     m.IsUser,
		"SenderType": string(m.SenderType),
		"CreatedAt":  m.CreatedAt.UTC().Format(backendTimeLayout),
	}
}
