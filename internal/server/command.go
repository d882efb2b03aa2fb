package server

import (
	"fmt"

	"hill/internal/auth"
	"hill/internal/pm"
)

// Response is the admin line protocol's reply: a single text line, plus
// whether the connection should close after it is sent.
type Response struct {
	Msg   string
	Close bool
}

func Respond(msg string) Response { return Response{Msg: msg} }
func Err(msg string) Response     { return Response{Msg: "ERR: " + msg} }
func Usage(cmd string) Response   { return Err("Usage " + cmd) }

const (
	msgOK  = "OK"
	noAuth = "Not authenticated"
	noPerm = "Permission denied"
	Prompt = "hill> "
)

func (s *Server) authCommand(sess *Session, parts []string) Response {
	if len(parts) != 3 {
		return Usage("AUTH <username> <password>")
	}

	u, err := s.authn.Authenticate(parts[1], parts[2])
	if err != nil {
		return Err(err.Error())
	}

	sess.user = u
	return Respond(msgOK)
}

func (s *Server) createUserCommand(sess *Session, parts []string) Response {
	if !sess.IsAuthed() {
		return Err(noAuth)
	}
	if !sess.user.IsOperator() {
		return Err(noPerm)
	}
	if len(parts) != 4 {
		return Usage("CREATEUSER <username> <password> <role>")
	}

	username := parts[1]
	if existing, _ := s.users.GetUser(username); existing != nil {
		return Err("user already exists")
	}

	role := auth.Role(parts[3])
	switch role {
	case auth.RoleOperator, auth.RoleViewer, auth.RoleReadonly:
	default:
		return Err("invalid role")
	}

	hash, err := auth.HashPassword(parts[2])
	if err != nil {
		return Err("failed to hash password")
	}

	u := &auth.User{
		Username: username,
		Password: string(hash),
		Role:     role,
	}
	if err := s.users.SaveUser(u); err != nil {
		return Err(err.Error())
	}
	return Respond(msgOK)
}

func (s *Server) deleteUserCommand(sess *Session, parts []string) Response {
	if !sess.IsAuthed() {
		return Err(noAuth)
	}
	if !sess.user.IsOperator() {
		return Err(noPerm)
	}
	if len(parts) != 2 {
		return Usage("DELUSER <username>")
	}

	if _, err := s.users.GetUser(parts[1]); err != nil {
		return Err(err.Error())
	}
	if err := s.users.DeleteUser(parts[1]); err != nil {
		return Err(err.Error())
	}
	return Respond(msgOK)
}

func (s *Server) statsCommand(sess *Session, parts []string) Response {
	if !sess.IsAuthed() {
		return Err(noAuth)
	}
	return Respond(fmt.Sprintf("node=%d", s.store.NodeID))
}

func (s *Server) dumpCommand(sess *Session, parts []string) Response {
	if !sess.IsAuthed() {
		return Err(noAuth)
	}
	if !sess.user.CanViewData() {
		return Err(noPerm)
	}
	entries, err := s.store.Range(nil, nil)
	if err != nil {
		return Err(err.Error())
	}
	return Respond(fmt.Sprintf("keys=%d", len(entries)))
}

func (s *Server) checkpointCommand(sess *Session, parts []string) Response {
	if !sess.IsAuthed() {
		return Err(noAuth)
	}
	if !sess.user.IsOperator() {
		return Err(noPerm)
	}
	for t := 0; t < pm.T; t++ {
		s.store.WAL.Checkpoint(t)
	}
	return Respond(msgOK)
}

func (s *Server) recoverCommand(sess *Session, parts []string) Response {
	if !sess.IsAuthed() {
		return Err(noAuth)
	}
	if !sess.user.IsOperator() {
		return Err(noPerm)
	}
	s.store.Alloc.Recover()
	return Respond(msgOK)
}
