package sandbox

// Recipe describes how one language is executed: base image, the filename the
// source is written to inside /workspace, and the build+run command.
type Recipe struct {
	Image    string
	FileName string
	Ext      string
	Command  []string
	// NetworkEnabled is true only for go: its module resolver needs outbound
	// access. Every other language runs with networking disabled.
	NetworkEnabled bool
}

var recipes = map[string]Recipe{
	"python": {
		Image:    "python:3.11-slim",
		FileName: "code.py",
		Ext:      ".py",
		Command:  []string{"python", "code.py"},
	},
	"javascript": {
		Image:    "node:22-alpine",
		FileName: "code.js",
		Ext:      ".js",
		Command:  []string{"node", "code.js"},
	},
	"java": {
		Image:    "openjdk:22-jre-slim",
		FileName: "code.java",
		Ext:      ".java",
		Command:  []string{"sh", "-c", "javac code.java && java code"},
	},
	"cpp": {
		Image:    "gcc:latest",
		FileName: "code.cpp",
		Ext:      ".cpp",
		Command:  []string{"sh", "-c", "g++ -std=c++17 -o program code.cpp && ./program"},
	},
	"c": {
		Image:    "gcc:latest",
		FileName: "code.c",
		Ext:      ".c",
		Command:  []string{"sh", "-c", "gcc -o program code.c && ./program"},
	},
	"go": {
		Image:          "golang:1.22-alpine",
		FileName:       "code.go",
		Ext:            ".go",
		Command:        []string{"sh", "-c", "cd /workspace && GOCACHE=/tmp GOPROXY=direct GOSUMDB=off GO111MODULE=auto go run code.go"},
		NetworkEnabled: true,
	},
}

// RecipeFor returns the recipe for a supported language tag.
func RecipeFor(language string) (Recipe, bool) {
	r, ok := recipes[language]
	return r, ok
}

// Supported reports whether language is in the supported set.
func Supported(language string) bool {
	_, ok := recipes[language]
	return ok
}

// Extension returns the canonical file extension for a supported language.
func Extension(language string) string {
	if r, ok := recipes[language]; ok {
		return r.Ext
	}
	return ".txt"
}

// Languages returns the supported language tags.
func Languages() []string {
	out := make([]string, 0, len(recipes))
	for lang := range recipes {
		out = append(out, lang)
	}
	return out
}
