package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"ZeroDTE/internal/domain/models"
	drepo "ZeroDTE/internal/domain/repository"
	applogger "ZeroDTE/pkg/logger"
)

// DefaultStreamSymbols are the tracked instruments Finnhub streams under
// their own name.
var DefaultStreamSymbols = []string{"SPY", "AAPL", "MSFT", "NVDA"}

// Stream implements MarketStream backed by the Finnhub trade websocket.
type Stream struct {
	apiKey         string
	websocketURL   string
	symbols        map[string]models.Symbol // provider symbol -> instrument
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	wmu       sync.Mutex // gorilla allows one concurrent writer
	conn      *websocket.Conn
	connected atomic.Bool
}

// NewStream creates a trade stream. Each entry of symbols is either a tracked
// instrument name ("SPY") or a "PROVIDER=INSTRUMENT" pair
// ("OANDA:SPX500_USD=ES_FUT"); unknown instruments are rejected.
func NewStream(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) (*Stream, error) {
	if len(symbols) == 0 {
		symbols = DefaultStreamSymbols
	}
	m, err := ParseStreamSymbols(symbols)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = applogger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Stream{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        m,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
	}, nil
}

// ParseStreamSymbols builds the provider to instrument map.
func ParseStreamSymbols(entries []string) (map[string]models.Symbol, error) {
	out := make(map[string]models.Symbol, len(entries))
	for _, e := range entries {
		provider, inst := e, e
		if i := strings.LastIndex(e, "="); i >= 0 {
			provider, inst = e[:i], e[i+1:]
		}
		provider = strings.TrimSpace(provider)
		sym := models.Symbol(strings.ToUpper(strings.TrimSpace(inst)))
		if provider == "" || !sym.IsKnown() {
			return nil, fmt.Errorf("stream symbol %q: unknown instrument %q", e, sym)
		}
		out[provider] = sym
	}
	return out, nil
}

// Connect establishes the websocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	u, err := url.Parse(s.websocketURL)
	if err != nil {
		return fmt.Errorf("finnhub url: %w", err)
	}
	q := u.Query()
	q.Set("token", s.apiKey)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}
	s.wmu.Lock()
	s.conn = conn
	s.wmu.Unlock()
	s.connected.Store(true)
	s.l.Info("finnhub stream connected", applogger.Int("symbols", len(s.symbols)))
	return nil
}

// Subscribe subscribes to every configured provider symbol.
func (s *Stream) Subscribe(ctx context.Context) error {
	if !s.connected.Load() {
		return errors.New("finnhub not connected")
	}
	for provider := range s.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": provider}
		if err := s.writeJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", provider, err)
		}
		s.l.Debug("finnhub subscribed", applogger.String("symbol", provider))
	}
	return nil
}

func (s *Stream) writeJSON(v interface{}) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.conn == nil {
		return errors.New("finnhub conn nil")
	}
	return s.conn.WriteJSON(v)
}

func (s *Stream) ping() {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.conn != nil {
		_ = s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
	}
}

type fhTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type fhMessage struct {
	Type string    `json:"type"`
	Data []fhTrade `json:"data"`
}

// Read streams ticks and errors. Both channels close when the connection
// fails or ctx ends.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)

	s.wmu.Lock()
	conn := s.conn
	s.wmu.Unlock()

	readCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-readCtx.Done():
				return
			case <-ticker.C:
				s.ping()
			}
		}
	}()

	go func() {
		defer cancel()
		defer close(ticks)
		defer close(errs)
		if conn == nil {
			errs <- errors.New("finnhub conn nil")
			return
		}
		for {
			if readCtx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				s.connected.Store(false)
				errs <- fmt.Errorf("finnhub read: %w", err)
				return
			}
			for _, t := range s.decode(b) {
				select {
				case ticks <- t:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return ticks, errs
}

// decode maps one frame to ticks; non-trade frames and unknown symbols yield
// nothing.
func (s *Stream) decode(b []byte) []*models.Tick {
	var m fhMessage
	if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
		return nil
	}
	out := make([]*models.Tick, 0, len(m.Data))
	for _, d := range m.Data {
		sym, ok := s.symbols[d.S]
		if !ok {
			continue
		}
		out = append(out, &models.Tick{Symbol: sym, Timestamp: d.T / 1000, Price: d.P, Volume: d.V})
	}
	return out
}

// Reconnect closes, waits the reconnect delay and subscribes again.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the websocket connection.
func (s *Stream) Close() error {
	s.connected.Store(false)
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool { return s.connected.Load() }

var _ drepo.MarketStream = (*Stream)(nil)
