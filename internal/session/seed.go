package session

// StarterJSON is shown in the editor before the user types anything
const StarterJSON = `{
  "info": "Add JSON here",
  "exampleValues": {
    "dayOfMonth": 18,
    "dateStr": "10-18-2026",
    "someRandomFloat": 4.27,
    "strArray": ["hello", "world"],
    "isWorking": true
  }
}`

// StarterStruct is the conversion of StarterJSON, so the output pane is not
// empty on first render
const StarterStruct = "type Generated struct {\n" +
	"    Info string `json:\"info\"`\n" +
	"    ExampleValues struct {\n" +
	"        DayOfMonth int `json:\"dayOfMonth\"`\n" +
	"        DateStr string `json:\"dateStr\"`\n" +
	"        SomeRandomFloat float64 `json:\"someRandomFloat\"`\n" +
	"        StrArray []string `json:\"strArray\"`\n" +
	"        IsWorking bool `json:\"isWorking\"`\n" +
	"    } `json:\"exampleValues\"`\n" +
	"}"

// Seed is the state a new session starts in
type Seed struct {
	Text   string
	Result string
}

// DefaultSeed returns the starter document and its precomputed struct
func DefaultSeed() Seed {
	return Seed{Text: StarterJSON, Result: StarterStruct}
}
