package lsp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/lgfile"
)

// Options configures a Server.
type Options struct {
	TemplatesDir    string
	MacrosDir       string
	DuplicatePolicy lg.DuplicatePolicy
	Logger          *slog.Logger
}

// Server is a language server for one project.
type Server struct {
	opts      Options
	documents *DocumentStore

	projectMu sync.RWMutex
	project   *project
	lastGood  map[string][]*lg.Template

	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	logger *slog.Logger

	shutdown bool
	exited   bool
}

// NewServer creates a server reading requests from r and writing to w.
func NewServer(r io.Reader, w io.Writer, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		opts:      opts,
		documents: NewDocumentStore(),
		lastGood:  make(map[string][]*lg.Template),
		reader:    bufio.NewReader(r),
		writer:    w,
		logger:    logger,
	}
}

// Run processes messages until the client sends exit or closes the
// input.
func (s *Server) Run() error {
	s.logger.Info("language server starting", slog.String("templates_dir", s.opts.TemplatesDir))

	for !s.exited {
		msg, err := s.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("client disconnected")
				return nil
			}
			s.logger.Error("failed to read message", slog.Any("error", err))
			continue
		}
		if err := s.handleMessage(msg); err != nil {
			s.logger.Error("failed to handle message", slog.String("method", msg.Method), slog.Any("error", err))
		}
	}
	return nil
}

// JSONRPCMessage is a JSON-RPC 2.0 request, response or notification.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError is a JSON-RPC error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC error codes.
const (
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
)

func (s *Server) readMessage() (*JSONRPCMessage, error) {
	contentLength := -1
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if value, ok := strings.CutPrefix(line, "Content-Length:"); ok {
			contentLength, err = strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

func (s *Server) sendResponse(id *json.RawMessage, result any, rpcErr *JSONRPCError) {
	msg := JSONRPCMessage{JSONRPC: "2.0", ID: id}
	if rpcErr != nil {
		msg.Error = rpcErr
	} else {
		// A nil result must still be sent as null.
		msg.Result, _ = json.Marshal(result)
	}
	s.writeMessage(&msg)
}

func (s *Server) sendNotification(method string, params any) {
	msg := JSONRPCMessage{JSONRPC: "2.0", Method: method}
	if params != nil {
		msg.Params, _ = json.Marshal(params)
	}
	s.writeMessage(&msg)
}

func (s *Server) writeMessage(msg *JSONRPCMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal message", slog.Any("error", err))
		return
	}
	_, _ = fmt.Fprintf(s.writer, "Content-Length: %d\r\n\r\n", len(body))
	_, _ = s.writer.Write(body)
}

func (s *Server) handleMessage(msg *JSONRPCMessage) error {
	s.logger.Debug("received", slog.String("method", msg.Method))

	if s.shutdown && msg.Method != "exit" {
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: -32600, Message: "server is shutting down"})
		}
		return nil
	}

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		s.handleInitialized()
		return nil
	case "shutdown":
		s.shutdown = true
		s.sendResponse(msg.ID, nil, nil)
		return nil
	case "exit":
		s.exited = true
		return nil
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		s.refresh()
		return nil
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/completion":
		return handleRequest(s, msg, func(p CompletionParams) any {
			return &CompletionList{Items: s.completions(p)}
		})
	case "textDocument/hover":
		return handleRequest(s, msg, func(p HoverParams) any { return s.hover(p) })
	case "textDocument/definition":
		return handleRequest(s, msg, func(p DefinitionParams) any { return s.definition(p) })
	default:
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeMethodNotFound, Message: "method not found: " + msg.Method})
		}
		return nil
	}
}

// handleRequest decodes the params of a request and responds with the
// result of fn.
func handleRequest[P any](s *Server, msg *JSONRPCMessage, fn func(P) any) error {
	var params P
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}
	s.sendResponse(msg.ID, fn(params), nil)
	return nil
}

func (s *Server) handleInitialize(msg *JSONRPCMessage) error {
	var params InitializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	if root := URIToPath(params.RootURI); root != "" {
		s.opts.TemplatesDir = resolveDir(root, s.opts.TemplatesDir)
		s.opts.MacrosDir = resolveDir(root, s.opts.MacrosDir)
	}
	s.logger.Info("initialized project",
		slog.String("templates_dir", s.opts.TemplatesDir),
		slog.String("macros_dir", s.opts.MacrosDir))

	s.sendResponse(msg.ID, InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
				Save:      &SaveOptions{},
			},
			CompletionProvider: &CompletionOptions{TriggerCharacters: []string{"[", "{", ".", "-"}},
			HoverProvider:      true,
			DefinitionProvider: true,
		},
	}, nil)
	return nil
}

func resolveDir(root, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

func (s *Server) handleInitialized() {
	p := s.refresh()
	if p.macroErr != nil {
		s.sendNotification("window/showMessage", &ShowMessageParams{
			Type:    MessageTypeWarning,
			Message: "Macros could not be loaded: " + p.macroErr.Error(),
		})
	}
}

func (s *Server) handleDidOpen(msg *JSONRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	s.documents.Open(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
	s.refresh()
	return nil
}

func (s *Server) handleDidChange(msg *JSONRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	// Full sync: the last change holds the whole document.
	if n := len(params.ContentChanges); n > 0 {
		s.documents.Update(params.TextDocument.URI, params.ContentChanges[n-1].Text, params.TextDocument.Version)
	}
	s.refresh()
	return nil
}

func (s *Server) handleDidClose(msg *JSONRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	s.documents.Close(params.TextDocument.URI)
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []Diagnostic{},
	})
	s.refresh()
	return nil
}

// refresh re-analyzes the project and publishes diagnostics for every
// open document, since an edit in one file can fix or break references
// in another.
func (s *Server) refresh() *project {
	p := analyze(s.opts, s.documents.All(), s.lastGood, s.logger)

	s.projectMu.Lock()
	s.project = p
	s.projectMu.Unlock()

	for _, doc := range s.documents.All() {
		if !isTemplateFile(doc.Path) {
			continue
		}
		s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
			URI:         doc.URI,
			Diagnostics: p.diagnosticsFor(doc),
		})
	}
	return p
}

// current returns the latest analysis, running one if none exists yet.
func (s *Server) current() *project {
	s.projectMu.RLock()
	p := s.project
	s.projectMu.RUnlock()
	if p != nil {
		return p
	}
	return s.refresh()
}

func isTemplateFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), lgfile.Ext)
}
