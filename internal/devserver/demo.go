package devserver

import _ "embed"

//go:embed demo.yaml
var demoSeed []byte

// DemoSeed is the built-in fixture used when no seed file is given.
func DemoSeed() (Seed, error) { return ParseSeed(demoSeed) }
