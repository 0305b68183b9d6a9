package domain

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"healthmon/pkg/apperror"
)

type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
	SchemeTCP   Scheme = "tcp"
)

// Service is one monitored target. Name is the unique key.
type Service struct {
	Name               string `json:"name" yaml:"name" mapstructure:"name"`
	Host               string `json:"host" yaml:"host" mapstructure:"host"`
	Port               int    `json:"port,omitempty" yaml:"port,omitempty" mapstructure:"port"`
	Path               string `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`
	Scheme             Scheme `json:"scheme" yaml:"scheme" mapstructure:"scheme"`
	IntervalSec        int    `json:"interval_sec" yaml:"interval_sec" mapstructure:"interval_sec"`
	DownAlertThreshold int    `json:"down_alert_threshold" yaml:"down_alert_threshold" mapstructure:"down_alert_threshold"`
}

// Defaults are the values filled into unset Service fields.
type Defaults struct {
	Host               string
	IntervalSec        int
	DownAlertThreshold int
}

func (s Service) Interval() time.Duration {
	return time.Duration(s.IntervalSec) * time.Second
}

// Normalize fills unset fields from d and validates the result.
// Zero values mean "use the default"; anything out of range is rejected.
func (s Service) Normalize(d Defaults) (Service, error) {
	s.Name = strings.TrimSpace(s.Name)
	s.Host = strings.TrimSpace(s.Host)
	s.Scheme = Scheme(strings.ToLower(strings.TrimSpace(string(s.Scheme))))

	if s.Host == "" {
		s.Host = d.Host
	}
	if s.Scheme == "" {
		s.Scheme = SchemeHTTP
	}
	if s.IntervalSec == 0 {
		s.IntervalSec = d.IntervalSec
	}
	if s.DownAlertThreshold == 0 {
		s.DownAlertThreshold = d.DownAlertThreshold
	}
	if s.Scheme != SchemeTCP && s.Path == "" {
		s.Path = "/"
	}

	if err := s.Validate(); err != nil {
		return Service{}, err
	}
	return s, nil
}

// Validate checks that the service resolves to a well-formed endpoint.
func (s Service) Validate() error {
	const op string = "domain.service.validate"

	switch {
	case s.Name == "":
		return apperror.Newf(apperror.Configuration, op, "service name is required")
	case strings.ContainsAny(s.Name, "/\\\x00"):
		return apperror.Newf(apperror.Configuration, op, "service name %q contains illegal characters", s.Name)
	case s.Host == "":
		return apperror.Newf(apperror.Configuration, op, "service %q: host is required", s.Name)
	case strings.ContainsAny(s.Host, "/ \t?#@"):
		return apperror.Newf(apperror.Configuration, op, "service %q: malformed host %q", s.Name, s.Host)
	case strings.Contains(s.Host, ":") && net.ParseIP(s.Host) == nil:
		return apperror.Newf(apperror.Configuration, op, "service %q: host %q must not carry a port", s.Name, s.Host)
	case s.Port < 0 || s.Port > 65535:
		return apperror.Newf(apperror.Configuration, op, "service %q: port %d out of range", s.Name, s.Port)
	case s.IntervalSec <= 0:
		return apperror.Newf(apperror.Configuration, op, "service %q: interval must be > 0", s.Name)
	case s.DownAlertThreshold < 1:
		return apperror.Newf(apperror.Configuration, op, "service %q: down alert threshold must be >= 1", s.Name)
	}

	switch s.Scheme {
	case SchemeHTTP, SchemeHTTPS:
		if !strings.HasPrefix(s.Path, "/") {
			return apperror.Newf(apperror.Configuration, op, "service %q: path must start with '/'", s.Name)
		}
		if _, err := url.Parse(s.URL()); err != nil {
			return apperror.New(apperror.Configuration, op, fmt.Errorf("service %q: %w", s.Name, err))
		}
	case SchemeTCP:
		if s.Port == 0 {
			return apperror.Newf(apperror.Configuration, op, "service %q: tcp checks need an explicit port", s.Name)
		}
	default:
		return apperror.Newf(apperror.Configuration, op, "service %q: unsupported scheme %q", s.Name, s.Scheme)
	}
	return nil
}

// Address returns host:port, using the scheme's default port when unset.
func (s Service) Address() string {
	port := s.Port
	if port == 0 {
		switch s.Scheme {
		case SchemeHTTPS:
			port = 443
		default:
			port = 80
		}
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(port))
}

// URL is the probe endpoint as shown to users and used by HTTP probes.
func (s Service) URL() string {
	if s.Scheme == SchemeTCP {
		return "tcp://" + s.Address()
	}
	host := s.Host
	if s.Port != 0 {
		host = net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	u := url.URL{Scheme: string(s.Scheme), Host: host}
	path, query, _ := strings.Cut(s.Path, "?")
	u.Path = path
	u.RawQuery = query
	return u.String()
}
