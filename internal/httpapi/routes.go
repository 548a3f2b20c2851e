package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/tychobrouwer/mailsyncd/internal/mailsyncerr"
)

// statusFor maps an error's Kind to the HTTP status the envelope is
// written with; the envelope's own "success": false plus "message"
// carries the classification for programmatic callers either way.
func statusFor(err error) int {
	switch mailsyncerr.KindOf(err) {
	case mailsyncerr.KindInvalidArgument:
		return http.StatusBadRequest
	case mailsyncerr.KindNotConnected, mailsyncerr.KindNotFound:
		return http.StatusNotFound
	case mailsyncerr.KindTransport, mailsyncerr.KindProtocol, mailsyncerr.KindStorage, mailsyncerr.KindParse:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("operation failed", "op", op, "error", err)
	writeJSON(w, statusFor(err), envelope{Success: false, Message: err.Error()}, s.logger)
}

func missingParam(w http.ResponseWriter, op, param string, logger *slog.Logger) {
	writeJSON(w, http.StatusBadRequest, envelope{
		Success: false,
		Message: "missing required parameter: " + param,
	}, logger)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	username, password, address := q.Get("username"), q.Get("password"), q.Get("address")
	if username == "" || password == "" || address == "" {
		missingParam(w, "login", "username, password, address", s.logger)
		return
	}
	port, _, err := queryUint16(q, "port")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid port"}, s.logger)
		return
	}
	if port == 0 {
		port = 993
	}

	id, err := s.facade.Login(username, password, address, port)
	if err != nil {
		s.writeError(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "connected", Data: map[string]int{"id": id}}, s.logger)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID, ok, err := queryInt(q, "session_id")
	if !ok || err != nil {
		missingParam(w, "logout", "session_id", s.logger)
		return
	}
	if err := s.facade.Logout(sessionID); err != nil {
		s.writeError(w, "logout", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "logged out"}, s.logger)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	infos := s.facade.ListSessions()
	type sessionView struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
		Address  string `json:"address"`
		Port     uint16 `json:"port"`
	}
	views := make([]sessionView, 0, len(infos))
	for _, info := range infos {
		views = append(views, sessionView{ID: info.ID, Username: info.Username, Address: info.Address, Port: info.Port})
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "sessions retrieved", Data: views}, s.logger)
}

func (s *Server) handleMailboxes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID, ok, err := queryInt(q, "session_id")
	if !ok || err != nil {
		missingParam(w, "mailboxes", "session_id", s.logger)
		return
	}
	paths, err := s.facade.GetMailboxes(sessionID)
	if err != nil {
		s.writeError(w, "get_mailboxes", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "mailboxes retrieved", Data: paths}, s.logger)
}

func (s *Server) handleUpdateMailboxes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID, ok, err := queryInt(q, "session_id")
	if !ok || err != nil {
		missingParam(w, "update_mailboxes", "session_id", s.logger)
		return
	}
	paths, err := s.facade.UpdateMailboxes(sessionID)
	if err != nil {
		s.writeError(w, "update_mailboxes", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "mailboxes updated", Data: paths}, s.logger)
}

func (s *Server) handleMessagesWithUIDs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID, ok, err := queryInt(q, "session_id")
	if !ok || err != nil {
		missingParam(w, "messages_with_uids", "session_id", s.logger)
		return
	}
	path := q.Get("mailbox_path")
	uids, err := parseUintList(q.Get("message_uids"))
	if path == "" || err != nil {
		missingParam(w, "messages_with_uids", "mailbox_path, message_uids", s.logger)
		return
	}

	messages, err := s.facade.FetchByUIDs(sessionID, path, uids)
	if err != nil {
		s.writeError(w, "messages_with_uids", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "messages retrieved", Data: messages}, s.logger)
}

func (s *Server) handleMessagesSorted(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID, ok, err := queryInt(q, "session_id")
	if !ok || err != nil {
		missingParam(w, "messages_sorted", "session_id", s.logger)
		return
	}
	path := q.Get("mailbox_path")
	start, startOK, startErr := queryInt(q, "start")
	end, endOK, endErr := queryInt(q, "end")
	if path == "" || !startOK || !endOK || startErr != nil || endErr != nil {
		missingParam(w, "messages_sorted", "mailbox_path, start, end", s.logger)
		return
	}

	messages, err := s.facade.FetchSorted(sessionID, path, start, end)
	if err != nil {
		s.writeError(w, "messages_sorted", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "messages retrieved", Data: messages}, s.logger)
}

func (s *Server) handleMessagesWithFlag(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID, ok, err := queryInt(q, "session_id")
	if !ok || err != nil {
		missingParam(w, "messages_with_flag", "session_id", s.logger)
		return
	}
	path := q.Get("mailbox_path")
	flag := q.Get("flag")
	negate, _, negErr := queryBool(q, "not_flag")
	if path == "" || flag == "" || negErr != nil {
		missingParam(w, "messages_with_flag", "mailbox_path, flag", s.logger)
		return
	}

	messages, err := s.facade.FetchByFlag(sessionID, path, flag, negate)
	if err != nil {
		s.writeError(w, "messages_with_flag", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "messages retrieved", Data: messages}, s.logger)
}

func (s *Server) handleUpdateMailbox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID, ok, err := queryInt(q, "session_id")
	if !ok || err != nil {
		missingParam(w, "update_mailbox", "session_id", s.logger)
		return
	}
	path := q.Get("mailbox_path")
	if path == "" {
		missingParam(w, "update_mailbox", "mailbox_path", s.logger)
		return
	}
	quick, _, quickErr := queryBool(q, "quick")
	if quickErr != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid quick"}, s.logger)
		return
	}

	changes, err := s.facade.UpdateMailbox(sessionID, path, quick)
	if err != nil {
		s.writeError(w, "update_mailbox", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "mailbox updated", Data: map[string]any{
		"new_uids":     changes.New,
		"removed_uids": changes.Removed,
		"changed_uids": changes.Changed,
	}}, s.logger)
}

func (s *Server) handleModifyFlags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID, ok, err := queryInt(q, "session_id")
	if !ok || err != nil {
		missingParam(w, "modify_flags", "session_id", s.logger)
		return
	}
	path := q.Get("mailbox_path")
	uid, uidOK, uidErr := queryUint32(q, "message_uid")
	flags := parseStringList(q.Get("flags"))
	add, addOK, addErr := queryBool(q, "add")
	if path == "" || !uidOK || uidErr != nil || len(flags) == 0 || !addOK || addErr != nil {
		missingParam(w, "modify_flags", "mailbox_path, message_uid, flags, add", s.logger)
		return
	}

	canonical, err := s.facade.ModifyFlags(sessionID, path, uid, flags, add)
	if err != nil {
		s.writeError(w, "modify_flags", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "flags modified", Data: map[string]string{"flags": canonical}}, s.logger)
}

func (s *Server) handleMoveMessage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID, ok, err := queryInt(q, "session_id")
	if !ok || err != nil {
		missingParam(w, "move_message", "session_id", s.logger)
		return
	}
	path := q.Get("mailbox_path")
	dest := q.Get("mailbox_path_dest")
	uid, uidOK, uidErr := queryUint32(q, "message_uid")
	if path == "" || dest == "" || !uidOK || uidErr != nil {
		missingParam(w, "move_message", "mailbox_path, mailbox_path_dest, message_uid", s.logger)
		return
	}

	if err := s.facade.Move(sessionID, path, uid, dest); err != nil {
		s.writeError(w, "move_message", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "message moved"}, s.logger)
}
