package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"vedtak/internal/config"
)

// CORSMiddleware handles CORS for the caseworker frontend
type CORSMiddleware struct {
	config  *config.CORSConfig
	methods string
	headers string
	exposed string
}

// NewCORSMiddleware creates a new CORS middleware
func NewCORSMiddleware(cfg *config.CORSConfig) *CORSMiddleware {
	return &CORSMiddleware{
		config:  cfg,
		methods: strings.Join(cfg.AllowedMethods, ", "),
		headers: strings.Join(cfg.AllowedHeaders, ", "),
		exposed: strings.Join(cfg.ExposedHeaders, ", "),
	}
}

// Handler handles CORS headers and answers preflight requests
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		w.Header().Add("Vary", "Origin")

		if origin == "" || !m.allowed(origin) {
			next.ServeHTTP(w, r)
			return
		}

		allowedOrigin := origin
		if slices.Contains(m.config.AllowedOrigins, "*") && !m.config.AllowCredentials {
			allowedOrigin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		if m.config.AllowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if m.exposed != "" {
			w.Header().Set("Access-Control-Expose-Headers", m.exposed)
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", m.methods)
			w.Header().Set("Access-Control-Allow-Headers", m.headers)
			if m.config.MaxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(m.config.MaxAge))
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *CORSMiddleware) allowed(origin string) bool {
	for _, o := range m.config.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
