package configs

var testSchema = `
str?: string
list?: [...int]
`

var (
	testSource = Source{
		Name: "test.cue",
		Content: []byte(`
str: "bar"
list: [1, 2, 3]
`),
	}
	testSource2 = Source{
		Name: "test2.cue",
		Content: []byte(`
str: "foo"
`),
	}
	badSource = Source{
		Name: "bad.cue",
		Content: []byte(`
unknown_field: "x"
`),
	}
)
