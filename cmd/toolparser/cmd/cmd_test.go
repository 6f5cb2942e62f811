package cmd_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/efortin/vllm-toolparser/cmd/toolparser/cmd"
	"github.com/efortin/vllm-toolparser/pkg/adapter"
	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

func run(stdin string, args ...string) (string, string, error) {
	root := cmd.NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

var _ = Describe("Commands", func() {
	Context("parse", func() {
		It("should print tagged calls read from stdin", func() {
			out, _, err := run(`[get_weather(city="Tokyo")]`, "parse")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(MatchJSON(`[{"name":"get_weather","kwargs":{"city":{"String":"Tokyo"}}}]`))
		})

		It("should read a file argument", func() {
			path := filepath.Join(GinkgoT().TempDir(), "output.txt")
			Expect(os.WriteFile(path, []byte(`<|python_start|>ping()<|python_end|>`), 0o600)).To(Succeed())

			out, _, err := run("", "parse", path)
			Expect(err).NotTo(HaveOccurred())

			var calls []toolcall.ToolCall
			Expect(json.Unmarshal([]byte(out), &calls)).To(Succeed())
			Expect(toolcall.Names(calls)).To(Equal([]string{"ping"}))
		})

		It("should print OpenAI tool calls", func() {
			out, _, err := run(`[search_hotels(location="Shinjuku", budget=50.0)]`, "parse", "--openai", "--flatten")
			Expect(err).NotTo(HaveOccurred())

			var info adapter.ExtractedToolCallInformation
			Expect(json.Unmarshal([]byte(out), &info)).To(Succeed())
			Expect(info.ToolsCalled).To(BeTrue())
			Expect(info.ToolCalls).To(HaveLen(1))
			Expect(info.ToolCalls[0].Function.Arguments).To(MatchJSON(`{"location":"Shinjuku","budget":50}`))
		})

		It("should report when no calls are found", func() {
			out, errOut, err := run("just prose", "parse")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(MatchJSON(`[]`))
			Expect(errOut).To(ContainSubstring("No tool calls found"))
		})

		It("should honour the engine flag", func() {
			out, _, err := run(`[a(x=1)]`, "parse", "--engine", "nom")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring(`"a"`))
		})

		It("should reject an unknown engine", func() {
			_, _, err := run(`[a()]`, "parse", "--engine", "regex")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown engine"))
		})

		It("should fail on a missing file", func() {
			_, _, err := run("", "parse", filepath.Join(GinkgoT().TempDir(), "absent.txt"))
			Expect(err).To(HaveOccurred())
		})
	})

	Context("stream", func() {
		It("should print released calls and a final line", func() {
			input := `<|python_start|>[search(query="test", limit=5), write_file(filename="a.txt")]<|python_end|>`
			out, _, err := run(input, "stream", "--chunk-size", "4")
			Expect(err).NotTo(HaveOccurred())

			lines := strings.Split(strings.TrimSpace(out), "\n")
			Expect(len(lines)).To(BeNumerically(">=", 2))

			var last struct {
				Final bool                `json:"final"`
				Total int                 `json:"total"`
				Calls []toolcall.ToolCall `json:"calls"`
			}
			Expect(json.Unmarshal([]byte(lines[len(lines)-1]), &last)).To(Succeed())
			Expect(last.Final).To(BeTrue())
			Expect(last.Total).To(Equal(2))
		})

		It("should flush a bare call on finish", func() {
			out, _, err := run(`get_weather(city="Paris")`, "stream", "--chunk-size", "3")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring(`"final":true`))
			Expect(out).To(ContainSubstring(`"get_weather"`))
		})

		It("should reject a non-positive chunk size", func() {
			_, _, err := run("[a()]", "stream", "--chunk-size", "0")
			Expect(err).To(HaveOccurred())
		})
	})

	Context("version", func() {
		It("should print build information", func() {
			cmd.SetVersion("1.0.0", "abc123", "2026-01-01")
			out, _, err := run("", "version")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("toolparser 1.0.0"))
			Expect(out).To(ContainSubstring("abc123"))
		})
	})
})
