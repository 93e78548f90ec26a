package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xhad/company-agent/internal/models"
	"github.com/xhad/company-agent/pkg/llm"
	"github.com/xhad/company-agent/pkg/logger"
	"github.com/xhad/company-agent/pkg/metrics"
	"github.com/xhad/company-agent/pkg/notice"
	"github.com/xhad/company-agent/pkg/session"
)

//go:embed static
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message types sent by the browser.
const (
	TypeSettings       = "settings"
	TypeRefreshDomains = "refresh_domains"
	TypeSelectDomain   = "select_domain"
	TypeAsk            = "ask"
	TypeExport         = "export"
	TypeClear          = "clear"
	TypeCrawl          = "crawl"
)

// Message types sent to the browser.
const (
	TypeInit     = "init"
	TypeDomains  = "domains"
	TypeNotice   = "notice"
	TypeAnswer   = "answer"
	TypeError    = "error"
	TypeStatus   = "status"
	TypeExported = "export"
	TypeCleared  = "cleared"
	TypeCrawled  = "crawl"
)

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type inbound struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type settingsPayload struct {
	DomainAPIURL    string   `json:"domain_api_url"`
	KnowledgeAPIURL string   `json:"knowledge_api_url"`
	CrawlAPIURL     string   `json:"crawl_api_url"`
	Model           string   `json:"model"`
	Temperature     float64  `json:"temperature"`
	IncludeFields   []string `json:"include_fields"`
}

type crawlPayload struct {
	Domains string `json:"domains"`
	Lite    bool   `json:"lite"`
	Prompt  string `json:"prompt"`
}

type initPayload struct {
	SessionID string          `json:"session_id"`
	Models    []llm.Model     `json:"models"`
	Fields    []string        `json:"fields"`
	Settings  settingsPayload `json:"settings"`
}

type domainsPayload struct {
	Domains  []models.CompanyDomain `json:"domains"`
	Selected string                 `json:"selected,omitempty"`
}

type Config struct {
	// Settings seed every new session.
	Settings session.Settings
	Logger   *zap.Logger
}

type WSServer struct {
	config Config
	deps   session.Deps
	logger *zap.Logger
}

func NewWSServer(config Config, deps session.Deps) (*WSServer, error) {
	if deps.Directory == nil || deps.Knowledge == nil || deps.Composer == nil {
		return nil, errors.New("directory, knowledge and composer are required")
	}
	if err := config.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session settings: %w", err)
	}
	l := logger.OrNop(config.Logger).Named("server")
	if deps.Logger == nil {
		deps.Logger = l
	}
	return &WSServer{config: config, deps: deps, logger: l}, nil
}

// Handler serves the chat UI on /, the websocket on /ws, plus /health and
// /metrics.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Add a simple health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	static, _ := fs.Sub(staticFiles, "static")
	mux.Handle("/", http.FileServer(http.FS(static)))
	return mux
}

func (s *WSServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting websocket server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// client is one browser connection and the session that belongs to it.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	session *session.Session
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := session.New(s.deps, s.config.Settings)
	c := &client{
		conn:    conn,
		session: sess,
		logger:  s.logger.With(zap.String("session_id", sess.ID)),
	}
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()
	c.logger.Info("session opened")

	c.send(Message{Type: TypeInit, Data: initPayload{
		SessionID: sess.ID,
		Models:    llm.Models,
		Fields:    models.NewFieldSet(models.AllFields...).Strings(),
		Settings:  toPayload(sess.Settings()),
	}})
	c.loadDomains(ctx, false)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("error reading message", zap.Error(err))
			}
			break
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(Message{Type: TypeError, Content: "malformed message"})
			continue
		}
		c.handle(ctx, msg)
	}

	// Stop a running answer and wait for it before the connection closes.
	cancel()
	c.wg.Wait()

	archiveCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := sess.Close(archiveCtx); err != nil {
		c.logger.Warn("transcript not archived", zap.Error(err))
	}
	c.logger.Info("session closed", zap.Int("turns", len(sess.Transcript())))
}

func (c *client) handle(ctx context.Context, msg inbound) {
	switch msg.Type {
	case TypeSettings:
		var p settingsPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.send(Message{Type: TypeError, Content: "malformed settings"})
			return
		}
		fields, err := models.ParseFields(p.IncludeFields)
		if err != nil {
			c.notify(notice.FromError(err))
			return
		}
		previous := c.session.Settings()
		err = c.session.UpdateSettings(session.Settings{
			DomainAPIURL:    p.DomainAPIURL,
			KnowledgeAPIURL: p.KnowledgeAPIURL,
			CrawlAPIURL:     p.CrawlAPIURL,
			Model:           p.Model,
			Temperature:     p.Temperature,
			IncludeFields:   fields,
		})
		if err != nil {
			c.notify(notice.FromError(err))
			return
		}
		c.send(Message{Type: TypeStatus, Content: "Settings saved"})
		if c.session.Settings().DomainAPIURL != previous.DomainAPIURL {
			c.loadDomains(ctx, false)
		}

	case TypeRefreshDomains:
		c.loadDomains(ctx, true)

	case TypeSelectDomain:
		d, err := c.session.SelectDomain(msg.Content)
		if err != nil {
			c.notify(notice.FromError(err))
			return
		}
		c.send(Message{Type: TypeStatus, Content: fmt.Sprintf("Chatting about %s", d.DisplayName())})

	case TypeAsk:
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.ask(ctx, msg.Content)
		}()

	case TypeExport:
		data, err := c.session.Export()
		if err != nil {
			c.send(Message{Type: TypeError, Content: err.Error()})
			return
		}
		c.send(Message{Type: TypeExported, Content: string(data)})

	case TypeClear:
		c.session.ClearTranscript()
		c.send(Message{Type: TypeCleared})

	case TypeCrawl:
		var p crawlPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.send(Message{Type: TypeError, Content: "malformed crawl request"})
			return
		}
		resp, err := c.session.SubmitCrawl(ctx, p.Domains, p.Lite, p.Prompt)
		if err != nil {
			c.notify(notice.FromError(err))
			return
		}
		c.send(Message{Type: TypeCrawled, Content: resp.Message, Data: resp.Domains})

	default:
		c.send(Message{Type: TypeError, Content: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (c *client) ask(ctx context.Context, question string) {
	c.send(Message{Type: TypeStatus, Content: "Thinking..."})
	turn, err := c.session.Ask(ctx, question)
	if turn != nil {
		c.notify(turn.Notices)
	}
	if err != nil {
		if turn == nil {
			c.notify(notice.FromError(err))
			return
		}
		c.send(Message{Type: TypeError, Content: turn.Result.Error, Data: turn.Result})
		return
	}
	c.send(Message{Type: TypeAnswer, Content: turn.Result.Answer, Data: turn.Result})
}

func (c *client) loadDomains(ctx context.Context, refresh bool) {
	domains, notices := c.session.LoadDomains(ctx, refresh)
	selected, _ := c.session.Selected()
	c.notify(notices)
	c.send(Message{Type: TypeDomains, Data: domainsPayload{Domains: domains, Selected: selected.Domain}})
}

func (c *client) notify(notices []notice.Notice) {
	for _, n := range notices {
		c.send(Message{Type: TypeNotice, Content: n.Message, Data: n})
	}
}

// send serialises writes; gorilla connections allow one writer at a time.
func (c *client) send(msg Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug("error sending message", zap.String("type", msg.Type), zap.Error(err))
	}
}

func toPayload(s session.Settings) settingsPayload {
	return settingsPayload{
		DomainAPIURL:    s.DomainAPIURL,
		KnowledgeAPIURL: s.KnowledgeAPIURL,
		CrawlAPIURL:     s.CrawlAPIURL,
		Model:           s.Model,
		Temperature:     s.Temperature,
		IncludeFields:   s.IncludeFields.Strings(),
	}
}
