// Package remote exposes named GPIO lines over a small token-guarded HTTP
// surface, following the remote IO convention of plain GET routes with every
// parameter, token included, in the path.
package remote

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
)

const httpTimeout = 3 * time.Second

// Line is the slice of a pioline.Pin the server needs.
type Line interface {
	Read() (int, error)
	Write(value int) error
}

type Server struct {
	Token    string
	HttpAddr string

	lines     map[string]Line
	server    *http.Server
	serverErr chan error
	logger    *log.Logger
}

func NewServer(addr, token string) *Server {
	return &Server{
		Token:    token,
		HttpAddr: addr,
		lines:    map[string]Line{},
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "remote: ",
			Level:  log.GetLevel(),
		}),
	}
}

// AddLine registers a line under its route name. Register everything before
// Start.
func (s *Server) AddLine(name string, line Line) {
	s.lines[name] = line
}

func (s *Server) router() *httprouter.Router {
	handler := httprouter.New()
	handler.GET("/line/:name/value/token/:token", s.handleRead)
	handler.GET("/line/:name/set/:value/token/:token", s.handleSet)
	return handler
}

// Start serves in the background; the first listen error lands on Err.
func (s *Server) Start() error {
	if s.HttpAddr == "" {
		return errors.New("remote server needs a listen address")
	}

	s.server = &http.Server{
		Addr:              s.HttpAddr,
		Handler:           s.router(),
		ReadTimeout:       httpTimeout,
		ReadHeaderTimeout: httpTimeout,
		WriteTimeout:      httpTimeout,
		IdleTimeout:       2 * httpTimeout,
	}
	s.serverErr = make(chan error, 1)

	go func() {
		s.serverErr <- s.server.ListenAndServe()
	}()
	s.logger.Info("serving lines", "addr", s.HttpAddr, "count", len(s.lines))
	return nil
}

// Err reports the outcome of the background listener.
func (s *Server) Err() <-chan error {
	return s.serverErr
}

func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

func (s *Server) lookup(w http.ResponseWriter, p httprouter.Params) (Line, bool) {
	if !strings.EqualFold(p.ByName("token"), s.Token) {
		http.Error(w, "token mismatch", http.StatusUnauthorized)
		return nil, false
	}
	line, ok := s.lines[p.ByName("name")]
	if !ok {
		http.Error(w, "line not found", http.StatusNotFound)
		return nil, false
	}
	return line, true
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	line, ok := s.lookup(w, p)
	if !ok {
		return
	}

	value, err := line.Read()
	if err != nil {
		s.logger.Error("reading line", "line", p.ByName("name"), "err", err)
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "%d", value)
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	line, ok := s.lookup(w, p)
	if !ok {
		return
	}

	var value int
	switch p.ByName("value") {
	case "0":
		value = 0
	case "1":
		value = 1
	default:
		http.Error(w, "value must be 0 or 1", http.StatusBadRequest)
		return
	}

	if err := line.Write(value); err != nil {
		s.logger.Error("setting line", "line", p.ByName("name"), "err", err)
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
