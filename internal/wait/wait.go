// Package wait implements the pre-start dependency checks the
// deployment runs before launching services: poll the database, cache
// and object storage until they answer or attempts run out.
package wait

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Probe is one readiness check against an external dependency.
type Probe interface {
	Ready(ctx context.Context) error
	Describe() string
}

// Until polls probe every interval until it succeeds, attempts are
// exhausted, or ctx is done. On exhaustion the last probe error is
// returned.
func Until(ctx context.Context, log *slog.Logger, p Probe, attempts int, interval time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := p.Ready(ctx)
		if err == nil {
			log.Info("dependency is ready", "target", p.Describe(), "attempt", i)
			return nil
		}
		lastErr = err
		log.Info("dependency not ready yet",
			"target", p.Describe(), "attempt", i, "of", attempts, "error", err)
		if i < attempts {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%s not ready after %d attempts: %w", p.Describe(), attempts, lastErr)
}

// TCPProbe dials addr and considers any accepted connection ready.
type TCPProbe struct {
	Addr string
}

func (p TCPProbe) Ready(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (p TCPProbe) Describe() string { return "tcp://" + p.Addr }

// PostgresProbe pings the database through the pgx stdlib driver.
type PostgresProbe struct {
	DSN string
}

func (p PostgresProbe) Ready(ctx context.Context) error {
	db, err := sql.Open("pgx", p.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(cctx)
}

func (p PostgresProbe) Describe() string { return "postgres" }

// RedisProbe speaks just enough RESP to send PING and expect +PONG.
// No Redis client library is pulled in for a one-command handshake.
type RedisProbe struct {
	Addr     string
	Password string
}

func (p RedisProbe) Ready(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	}
	r := bufio.NewReader(conn)
	if p.Password != "" {
		if _, err := fmt.Fprintf(conn, "AUTH %s\r\n", p.Password); err != nil {
			return err
		}
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		if !strings.HasPrefix(line, "+OK") {
			return fmt.Errorf("redis auth failed: %s", strings.TrimSpace(line))
		}
	}
	if _, err := conn.Write([]byte("PING\r\n")); err != nil {
		return err
	}
	line, err := r.ReadString('\n')
	if err != nil {
		return err
	}
	if !strings.HasPrefix(line, "+PONG") {
		return fmt.Errorf("unexpected redis reply: %s", strings.TrimSpace(line))
	}
	return nil
}

func (p RedisProbe) Describe() string { return "redis://" + p.Addr }

// HTTPProbe considers any response below 500 ready, matching the
// object-storage health endpoint's behavior.
type HTTPProbe struct {
	URL string
}

func (p HTTPProbe) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("status %d from %s", resp.StatusCode, p.URL)
	}
	return nil
}

func (p HTTPProbe) Describe() string { return p.URL }

// FromEnv builds the deployment's standard probe set from the same
// environment variables the application reads, defaulting and warning
// the way the original check scripts did.
func FromEnv(log *slog.Logger) []Probe {
	host := envOr(log, "DB_HOST", "localhost")
	port := envOr(log, "DB_PORT", "5432")
	name := envOr(log, "DB_NAME", "postgres")
	user := envOr(log, "DB_USERNAME", "postgres")
	pass := os.Getenv("DB_PASS")

	dsn := fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		host, port, name, user, pass)

	probes := []Probe{PostgresProbe{DSN: dsn}}

	redisHost := envOr(log, "REDIS_HOST", "localhost")
	redisPort := envOr(log, "REDIS_PORT", "6379")
	probes = append(probes, RedisProbe{
		Addr:     net.JoinHostPort(redisHost, redisPort),
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		url := endpoint
		if !strings.Contains(url, "://") {
			url = "http://" + url
		}
		probes = append(probes, HTTPProbe{URL: strings.TrimRight(url, "/") + "/minio/health/live"})
	}
	return probes
}

func envOr(log *slog.Logger, key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	log.Warn("environment variable not set, using default", "var", key, "default", def)
	return def
}
