package policy

import (
	"testing"
)

func FuzzDecode(f *testing.F) {
	f.Add([]byte(`leisure:
  "2020-03-16": {fraction: 0.4, closingHours: [21, 5]}
work: {}
`))
	f.Add([]byte(`{"leisure": {"2020-03-16": {"masks": {"N95": 0.5}}}}`))
	f.Add([]byte{})
	f.Add([]byte(`{{{not yaml at all`))

	f.Fuzz(func(t *testing.T, data []byte) {
		p, err := Decode(data)
		if err != nil {
			return
		}
		// a decoded policy survives its own document
		back, err := FromDocument(p.Document())
		if err != nil {
			t.Fatalf("re-decode failed: %v", err)
		}
		if !back.Equal(p) {
			t.Fatal("document round trip changed the policy")
		}
	})
}
