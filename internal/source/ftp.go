package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"
)

const (
	ftpTimeout        = 30 * time.Second
	ftpMaxElapsedTime = 2 * time.Minute
)

type ftpLocation struct {
	addr     string
	user     string
	password string
	path     string
}

func parseFTPURL(raw string) (ftpLocation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ftpLocation{}, fmt.Errorf("parse ftp url: %w", err)
	}
	if u.Scheme != "ftp" {
		return ftpLocation{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return ftpLocation{}, errors.New("ftp url has no host")
	}
	if u.Path == "" || u.Path == "/" {
		return ftpLocation{}, errors.New("ftp url has no file path")
	}

	loc := ftpLocation{
		addr:     u.Host,
		user:     "anonymous",
		password: "anonymous",
		path:     u.Path,
	}
	if u.Port() == "" {
		loc.addr = net.JoinHostPort(u.Hostname(), "21")
	}
	if u.User != nil {
		loc.user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			loc.password = p
		}
	}
	return loc, nil
}

// fetchFTP downloads a file, retrying dial and transfer failures with
// exponential backoff. A rejected login is not retried.
func fetchFTP(ctx context.Context, raw string, logger *slog.Logger) ([]byte, error) {
	loc, err := parseFTPURL(raw)
	if err != nil {
		return nil, err
	}

	var body []byte
	operation := func() error {
		conn, err := ftp.Dial(loc.addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(ftpTimeout))
		if err != nil {
			return fmt.Errorf("ftp dial: %w", err)
		}
		defer conn.Quit()

		if err := conn.Login(loc.user, loc.password); err != nil {
			return backoff.Permanent(fmt.Errorf("ftp login: %w", err))
		}

		resp, err := conn.Retr(loc.path)
		if err != nil {
			return fmt.Errorf("ftp retr: %w", err)
		}
		defer resp.Close()

		body, err = io.ReadAll(resp)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("ftp fetch failed, retrying", "addr", loc.addr, "path", loc.path, "wait", wait, "error", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = ftpMaxElapsedTime
	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, err
	}
	return body, nil
}
