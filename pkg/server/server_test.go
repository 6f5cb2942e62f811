package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/efortin/vllm-toolparser/pkg/adapter"
	"github.com/efortin/vllm-toolparser/pkg/config"
	"github.com/efortin/vllm-toolparser/pkg/server"
	"github.com/efortin/vllm-toolparser/pkg/stats"
	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func do(handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var out T
	Expect(json.Unmarshal(w.Body.Bytes(), &out)).To(Succeed())
	return out
}

var _ = Describe("Server", func() {
	var (
		srv     *server.Server
		handler http.Handler
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		var err error
		srv, err = server.New(config.Default(), stats.NewMetricsRecorder())
		Expect(err).NotTo(HaveOccurred())
		handler = srv.Handler()
	})

	Describe("New", func() {
		It("should reject an invalid configuration", func() {
			cfg := config.Default()
			cfg.Engine = "regex"
			_, err := server.New(cfg, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("GET /health", func() {
		It("should report ok", func() {
			w := do(handler, http.MethodGet, "/health", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(MatchJSON(`{"status":"ok"}`))
		})
	})

	Describe("POST /v1/parse", func() {
		It("should return tagged calls", func() {
			w := do(handler, http.MethodPost, "/v1/parse", server.ParseRequest{
				Text: `[get_weather(city="Tokyo", days=3)]`,
			})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(MatchJSON(`{
				"calls": [{"name": "get_weather", "kwargs": {"city": {"String": "Tokyo"}, "days": {"Number": 3}}}],
				"count": 1
			}`))
		})

		It("should accept an engine alias", func() {
			w := do(handler, http.MethodPost, "/v1/parse", server.ParseRequest{
				Text:   `[a(x=1), b(y=True)]`,
				Engine: "nom",
			})
			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode[server.ParseResponse](w)
			Expect(toolcall.Names(resp.Calls)).To(Equal([]string{"a", "b"}))
		})

		It("should return an empty list when nothing matches", func() {
			w := do(handler, http.MethodPost, "/v1/parse", server.ParseRequest{Text: "no tools here"})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(MatchJSON(`{"calls": [], "count": 0}`))
		})

		It("should reject an unknown engine", func() {
			w := do(handler, http.MethodPost, "/v1/parse", server.ParseRequest{Text: "[a()]", Engine: "regex"})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode[errorBody](w).Error.Type).To(Equal("unknown_engine"))
		})

		It("should reject malformed JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/parse", strings.NewReader("{"))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode[errorBody](w).Error.Type).To(Equal("invalid_request"))
		})
	})

	Describe("POST /v1/extract", func() {
		It("should return OpenAI tool calls", func() {
			w := do(handler, http.MethodPost, "/v1/extract", server.ExtractRequest{
				Text: `Checking. [get_weather_forecast(location="Tokyo", days=7)]`,
			})
			Expect(w.Code).To(Equal(http.StatusOK))

			info := decode[adapter.ExtractedToolCallInformation](w)
			Expect(info.ToolsCalled).To(BeTrue())
			Expect(info.Content).To(Equal("Checking."))
			Expect(info.ToolCalls).To(HaveLen(1))
			Expect(info.ToolCalls[0].ID).To(Equal("call_a"))
			Expect(info.ToolCalls[0].Function.Arguments).To(MatchJSON(`{"location":"Tokyo","days":7}`))
		})

		It("should keep plain text as content", func() {
			w := do(handler, http.MethodPost, "/v1/extract", server.ExtractRequest{Text: "Hello!"})
			info := decode[adapter.ExtractedToolCallInformation](w)
			Expect(info.ToolsCalled).To(BeFalse())
			Expect(info.ToolCalls).To(BeEmpty())
			Expect(info.Content).To(Equal("Hello!"))
		})
	})

	Describe("POST /v1/extract/stream", func() {
		It("should answer not implemented", func() {
			w := do(handler, http.MethodPost, "/v1/extract/stream", server.ExtractRequest{Text: "[a("})
			Expect(w.Code).To(Equal(http.StatusNotImplemented))
			Expect(decode[errorBody](w).Error.Type).To(Equal("unsupported_operation"))
		})
	})

	Describe("Streaming sessions", func() {
		var id string

		BeforeEach(func() {
			w := do(handler, http.MethodPost, "/v1/sessions", nil)
			Expect(w.Code).To(Equal(http.StatusCreated))
			id = decode[server.SessionResponse](w).ID
			Expect(id).NotTo(BeEmpty())
		})

		chunk := func(text string) *httptest.ResponseRecorder {
			return do(handler, http.MethodPost, "/v1/sessions/"+id+"/chunks", server.ChunkRequest{Text: text})
		}

		It("should release calls as the list closes", func() {
			chunks := []string{
				"<|python_start|>[",
				`search(query="test", limit=5`,
				"), write_file(",
				`filename="test.txt", content="hello"`,
				")]<|python_end|>",
			}
			var released [][]toolcall.ToolCall
			for _, text := range chunks {
				w := chunk(text)
				Expect(w.Code).To(Equal(http.StatusOK))
				released = append(released, decode[server.CallsResponse](w).Calls)
			}
			for i := 0; i < 4; i++ {
				Expect(released[i]).To(BeEmpty())
			}
			Expect(toolcall.Names(released[4])).To(Equal([]string{"search", "write_file"}))

			w := do(handler, http.MethodGet, "/v1/sessions/"+id+"/calls", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode[server.CallsResponse](w)
			Expect(toolcall.Names(resp.Calls)).To(Equal([]string{"search", "write_file"}))
			Expect(resp.State).NotTo(BeNil())
			Expect(resp.State.Marker).To(Equal("outside"))
		})

		It("should flush pending calls on finish", func() {
			Expect(chunk(`<|python_start|>ping(host="a")`).Code).To(Equal(http.StatusOK))

			w := do(handler, http.MethodPost, "/v1/sessions/"+id+"/finish", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(toolcall.Names(decode[server.CallsResponse](w).Calls)).To(Equal([]string{"ping"}))
		})

		It("should reject chunks after finish", func() {
			do(handler, http.MethodPost, "/v1/sessions/"+id+"/finish", nil)
			w := chunk("more")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode[errorBody](w).Error.Type).To(Equal("input_contract"))
		})

		It("should reject a snapshot that rewrites history", func() {
			path := "/v1/sessions/" + id + "/chunks"
			Expect(do(handler, http.MethodPost, path, server.ChunkRequest{Text: "[a(", Snapshot: true}).Code).To(Equal(http.StatusOK))
			w := do(handler, http.MethodPost, path, server.ChunkRequest{Text: "[b(", Snapshot: true})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode[errorBody](w).Error.Type).To(Equal("input_contract"))
		})

		It("should delete a session", func() {
			w := do(handler, http.MethodDelete, "/v1/sessions/"+id, nil)
			Expect(w.Code).To(Equal(http.StatusNoContent))

			w = do(handler, http.MethodGet, "/v1/sessions/"+id+"/calls", nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(decode[errorBody](w).Error.Type).To(Equal("session_not_found"))

			w = do(handler, http.MethodDelete, "/v1/sessions/"+id, nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Session eviction", func() {
		It("should evict the least recently used session", func() {
			cfg := config.Default()
			cfg.MaxSessions = 1
			small, err := server.New(cfg, nil)
			Expect(err).NotTo(HaveOccurred())
			h := small.Handler()

			first := decode[server.SessionResponse](do(h, http.MethodPost, "/v1/sessions", nil)).ID
			second := decode[server.SessionResponse](do(h, http.MethodPost, "/v1/sessions", nil)).ID

			Expect(do(h, http.MethodGet, "/v1/sessions/"+first+"/calls", nil).Code).To(Equal(http.StatusNotFound))
			Expect(do(h, http.MethodGet, "/v1/sessions/"+second+"/calls", nil).Code).To(Equal(http.StatusOK))
			Expect(small.Sessions().Len()).To(Equal(1))
		})
	})

	Describe("CORS", func() {
		It("should be disabled by default", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", "https://app.example.com")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			Expect(w.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})

		It("should allow configured origins", func() {
			cfg := config.Default()
			cfg.AllowOrigins = []string{"https://app.example.com"}
			withCORS, err := server.New(cfg, nil)
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", "https://app.example.com")
			w := httptest.NewRecorder()
			withCORS.Handler().ServeHTTP(w, req)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://app.example.com"))
		})
	})

	Describe("GET /metrics", func() {
		It("should expose request metrics", func() {
			do(handler, http.MethodGet, "/health", nil)
			w := do(handler, http.MethodGet, "/metrics", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring("toolparser_requests_total"))
			Expect(w.Body.String()).To(ContainSubstring(`path="/health"`))
		})
	})
})
