package pythonic_test

import (
	"encoding/json"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/efortin/vllm-toolparser/pkg/pythonic"
	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

type conformanceCase struct {
	ID              string              `json:"id"`
	Description     string              `json:"description"`
	Text            string              `json:"text"`
	StreamDivergent bool                `json:"stream_divergent"`
	Expected        []toolcall.ToolCall `json:"expected"`
}

func mustLoadCases() []conformanceCase {
	data, err := os.ReadFile("testdata/conformance.json")
	if err != nil {
		panic(err)
	}
	var cases []conformanceCase
	if err := json.Unmarshal(data, &cases); err != nil {
		panic(err)
	}
	return cases
}

func wireJSON(calls []toolcall.ToolCall) string {
	if calls == nil {
		calls = []toolcall.ToolCall{}
	}
	data, err := json.Marshal(calls)
	Expect(err).NotTo(HaveOccurred())
	return string(data)
}

// chunkRunes splits s into pieces of size runes so every chunk stays valid UTF-8
func chunkRunes(s string, size int) []string {
	runes := []rune(s)
	var out []string
	for i := 0; i < len(runes); i += size {
		out = append(out, string(runes[i:min(i+size, len(runes))]))
	}
	return out
}

func stream(text string, size int) []toolcall.ToolCall {
	p := pythonic.NewIncrementalParser(pythonic.Options{})
	for _, chunk := range chunkRunes(text, size) {
		_, err := p.ParseChunk(chunk)
		Expect(err).NotTo(HaveOccurred())
	}
	p.Finish()
	return p.ParsedFunctions()
}

var cases = mustLoadCases()

var _ = Describe("Engine conformance", func() {
	for _, engine := range []pythonic.EngineKind{pythonic.EnginePrimary, pythonic.EngineAlternate} {
		engine := engine
		Context(string(engine)+" engine", func() {
			for _, tc := range cases {
				tc := tc
				It(tc.Description, func() {
					calls := pythonic.ParseTools(tc.Text, engine)
					Expect(wireJSON(calls)).To(Equal(wireJSON(tc.Expected)), tc.ID)
				})
			}
		})
	}

	Context("without the fallback heuristic", func() {
		It("should make both engines agree on every case", func() {
			primary, err := pythonic.NewParser(pythonic.Options{Engine: pythonic.EnginePrimary, DisableFallback: true})
			Expect(err).NotTo(HaveOccurred())
			alternate, err := pythonic.NewParser(pythonic.Options{Engine: pythonic.EngineAlternate, DisableFallback: true})
			Expect(err).NotTo(HaveOccurred())

			for _, tc := range cases {
				Expect(wireJSON(alternate.Parse(tc.Text))).To(Equal(wireJSON(primary.Parse(tc.Text))), tc.ID)
			}
		})
	})
})

var _ = Describe("IncrementalParser", func() {
	Context("Batch equivalence", func() {
		for _, tc := range cases {
			if tc.StreamDivergent {
				continue
			}
			tc := tc
			It("should match the batch result for "+tc.ID, func() {
				expected := wireJSON(pythonic.ParseTools(tc.Text))
				for _, size := range []int{1, 2, 3, 5, 8, 13, 1 << 16} {
					Expect(wireJSON(stream(tc.Text, size))).To(Equal(expected), "chunk size %d", size)
				}
			})
		}
	})

	Context("Streaming scenario", func() {
		It("should only release calls once the list closes", func() {
			p := pythonic.NewIncrementalParser(pythonic.Options{})
			chunks := []string{
				"<|python_start|>[",
				`search(query="test", limit=5`,
				"), write_file(",
				`filename="test.txt", content="hello"`,
				")]<|python_end|>",
			}

			var released [][]toolcall.ToolCall
			for _, chunk := range chunks {
				calls, err := p.ParseChunk(chunk)
				Expect(err).NotTo(HaveOccurred())
				released = append(released, calls)
			}

			for i := 0; i < 4; i++ {
				Expect(released[i]).To(BeEmpty())
			}
			Expect(toolcall.Names(released[4])).To(Equal([]string{"search", "write_file"}))
			Expect(toolcall.Names(p.ParsedFunctions())).To(Equal([]string{"search", "write_file"}))

			limit, ok := released[4][0].Kwargs.Get("limit")
			Expect(ok).To(BeTrue())
			Expect(limit).To(Equal(toolcall.Number(5)))
		})
	})

	Context("Input contract", func() {
		It("should reject invalid UTF-8", func() {
			p := pythonic.NewIncrementalParser(pythonic.Options{})
			_, err := p.ParseChunk("\xc3")
			Expect(err).To(MatchError(pythonic.ErrInputContract))
		})

		It("should reject a snapshot that rewrites history", func() {
			p := pythonic.NewIncrementalParser(pythonic.Options{})
			_, err := p.ParseText("[a(")
			Expect(err).NotTo(HaveOccurred())
			_, err = p.ParseText("[b(")
			Expect(err).To(MatchError(pythonic.ErrInputContract))
		})
	})
})
