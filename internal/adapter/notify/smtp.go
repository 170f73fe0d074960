package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
	"golang.org/x/time/rate"

	"ragalert/internal/domain"
)

// Config holds SMTP delivery settings.
type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	Timeout       time.Duration
	RatePerMinute float64
	Burst         int
}

// sender delivers prepared messages. *mail.Client satisfies it.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPNotifier sends alerts over SMTP with STARTTLS. Sends are rate
// limited so a burst of alarming answers cannot flood the recipients.
type SMTPNotifier struct {
	cfg     Config
	dial    func() (sender, error)
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewSMTPNotifier(cfg Config, logger *slog.Logger) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is not set")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("sender address is not set")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}

	n := newNotifier(cfg, logger, nil)
	n.dial = func() (sender, error) {
		opts := []mail.Option{
			mail.WithPort(cfg.Port),
			mail.WithTLSPolicy(mail.TLSMandatory),
			mail.WithTimeout(cfg.Timeout),
		}
		if cfg.Username != "" {
			opts = append(opts,
				mail.WithSMTPAuth(mail.SMTPAuthPlain),
				mail.WithUsername(cfg.Username),
				mail.WithPassword(cfg.Password),
			)
		}
		return mail.NewClient(cfg.Host, opts...)
	}
	return n, nil
}

func newNotifier(cfg Config, logger *slog.Logger, dial func() (sender, error)) *SMTPNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Every(time.Duration(float64(time.Minute) / cfg.RatePerMinute))
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &SMTPNotifier{
		cfg:     cfg,
		dial:    dial,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Send delivers the alert to every recipient. All failures wrap
// domain.ErrNotification.
func (n *SMTPNotifier) Send(ctx context.Context, alert domain.Alert) error {
	if len(alert.To) == 0 {
		return fmt.Errorf("%w: no recipients", domain.ErrNotification)
	}

	if n.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.Timeout)
		defer cancel()
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limited: %v", domain.ErrNotification, err)
	}

	msg, err := n.buildMessage(alert)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotification, err)
	}

	client, err := n.dial()
	if err != nil {
		return fmt.Errorf("%w: smtp client: %v", domain.ErrNotification, err)
	}

	start := time.Now()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: send: %v", domain.ErrNotification, err)
	}

	n.logger.Info("alert sent",
		"subject", alert.Subject,
		"recipients", len(alert.To),
		"duration", time.Since(start))
	return nil
}

func (n *SMTPNotifier) buildMessage(alert domain.Alert) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", n.cfg.From, err)
	}
	if err := m.To(alert.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(alert.Subject)
	m.SetBodyString(mail.TypeTextHTML, alert.HTML)
	return m, nil
}

// Disabled is used when notifications are turned off. Every send fails
// so callers report notified=false.
type Disabled struct{}

func (Disabled) Send(context.Context, domain.Alert) error {
	return fmt.Errorf("%w: notifications are disabled", domain.ErrNotification)
}
