package anchor

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// taskIDPattern is the character class a task id must match, both when
// scanning and when composing marker text.
const taskIDPattern = `[a-zA-Z0-9_-]+`

// Patterns holds the compiled recognizers for one language. Line is applied
// per document line; Block, when non-nil, is applied once across the whole
// document text. Both capture the task id in group 1.
type Patterns struct {
	Line  *regexp.Regexp
	Block *regexp.Regexp
}

// syntax describes how one language family writes comments.
type syntax struct {
	linePrefix string // e.g. "//", "#", "--"
	blockOpen  string // e.g. "/*", "<!--"; empty when the language has none
}

// Comment syntax families. The line prefix doubles as the prefix used when
// composing new marker lines.
var (
	syntaxSlash  = syntax{linePrefix: "//", blockOpen: "/*"}
	syntaxHash   = syntax{linePrefix: "#"}
	syntaxDash   = syntax{linePrefix: "--", blockOpen: "/*"}
	syntaxSemi   = syntax{linePrefix: ";"}
	syntaxHTML   = syntax{linePrefix: "<!--", blockOpen: "<!--"}
	syntaxERLang = syntax{linePrefix: "%"}
)

// syntaxByLanguage maps editor language identifiers to their comment syntax.
// Identifiers follow the common editor naming (lowercase, no dots).
var syntaxByLanguage = map[string]syntax{
	"c":               syntaxSlash,
	"cpp":             syntaxSlash,
	"csharp":          syntaxSlash,
	"dart":            syntaxSlash,
	"go":              syntaxSlash,
	"groovy":          syntaxSlash,
	"java":            syntaxSlash,
	"javascript":      syntaxSlash,
	"javascriptreact": syntaxSlash,
	"kotlin":          syntaxSlash,
	"objective-c":     syntaxSlash,
	"php":             syntaxSlash,
	"rust":            syntaxSlash,
	"scala":           syntaxSlash,
	"swift":           syntaxSlash,
	"typescript":      syntaxSlash,
	"typescriptreact": syntaxSlash,
	"jsonc":           syntaxSlash,

	"coffeescript": syntaxHash,
	"dockerfile":   syntaxHash,
	"elixir":       syntaxHash,
	"julia":        syntaxHash,
	"makefile":     syntaxHash,
	"perl":         syntaxHash,
	"powershell":   syntaxHash,
	"python":       syntaxHash,
	"r":            syntaxHash,
	"ruby":         syntaxHash,
	"shellscript":  syntaxHash,
	"toml":         syntaxHash,
	"yaml":         syntaxHash,

	"haskell": syntaxDash,
	"lua":     syntaxDash,
	"sql":     syntaxDash,

	"clojure": syntaxSemi,
	"ini":     syntaxSemi,
	"lisp":    syntaxSemi,

	"erlang": syntaxERLang,
	"latex":  syntaxERLang,

	"html":     syntaxHTML,
	"markdown": syntaxHTML,
	"svelte":   syntaxHTML,
	"vue":      syntaxHTML,
	"xml":      syntaxHTML,
}

// languageByExtension resolves a file extension to a language identifier for
// hosts that report an unreliable or missing language id.
var languageByExtension = map[string]string{
	".c":        "c",
	".cc":       "cpp",
	".clj":      "clojure",
	".cpp":      "cpp",
	".cs":       "csharp",
	".dart":     "dart",
	".erl":      "erlang",
	".ex":       "elixir",
	".go":       "go",
	".h":        "c",
	".hpp":      "cpp",
	".hs":       "haskell",
	".html":     "html",
	".ini":      "ini",
	".java":     "java",
	".jl":       "julia",
	".js":       "javascript",
	".jsx":      "javascriptreact",
	".kt":       "kotlin",
	".lua":      "lua",
	".markdown": "markdown",
	".md":       "markdown",
	".php":      "php",
	".pl":       "perl",
	".ps1":      "powershell",
	".py":       "python",
	".r":        "r",
	".rb":       "ruby",
	".rs":       "rust",
	".scala":    "scala",
	".sh":       "shellscript",
	".sql":      "sql",
	".svelte":   "svelte",
	".swift":    "swift",
	".tex":      "latex",
	".toml":     "toml",
	".ts":       "typescript",
	".tsx":      "typescriptreact",
	".vue":      "vue",
	".xml":      "xml",
	".yaml":     "yaml",
	".yml":      "yaml",
}

// defaultSyntax is used for unknown languages. A `//` line comment is the
// least surprising default for source files.
var defaultSyntax = syntaxSlash

// patternCache holds one compiled Patterns value per distinct syntax.
// Compiled eagerly; the set of syntax families is fixed.
var patternCache = map[syntax]Patterns{
	syntaxSlash:  compileFor(syntaxSlash),
	syntaxHash:   compileFor(syntaxHash),
	syntaxDash:   compileFor(syntaxDash),
	syntaxSemi:   compileFor(syntaxSemi),
	syntaxHTML:   compileFor(syntaxHTML),
	syntaxERLang: compileFor(syntaxERLang),
}

func compileFor(s syntax) Patterns {
	line := regexp.MustCompile(regexp.QuoteMeta(s.linePrefix) + `[ \t]*clickup:(` + taskIDPattern + `)`)

	var block *regexp.Regexp
	if s.blockOpen != "" && s.blockOpen != s.linePrefix {
		block = regexp.MustCompile(regexp.QuoteMeta(s.blockOpen) + `[ \t]*clickup:(` + taskIDPattern + `)`)
	}

	return Patterns{Line: line, Block: block}
}

// Resolver resolves comment syntax for documents, with user-configured
// line-comment prefixes layered over the built-in tables. Overrides are
// keyed by lowercase language id or by extension (leading dot); an
// extension override beats every built-in rule, including the markdown
// special case. Immutable after construction, safe for concurrent use.
type Resolver struct {
	byLanguage map[string]syntax
	byExt      map[string]syntax
	compiled   map[syntax]Patterns
}

// NewResolver builds a resolver from a map of language id or ".ext" to
// line-comment prefix. Entries with an empty key or blank prefix are
// dropped. A nil map yields the built-in tables unchanged.
func NewResolver(linePrefixes map[string]string) *Resolver {
	r := &Resolver{
		byLanguage: make(map[string]syntax),
		byExt:      make(map[string]syntax),
		compiled:   make(map[syntax]Patterns),
	}

	for key, prefix := range linePrefixes {
		prefix = strings.TrimSpace(prefix)
		if key == "" || prefix == "" {
			continue
		}

		s := syntax{linePrefix: prefix}

		// Compiled up front so Patterns stays a read-only lookup.
		if _, ok := r.compiled[s]; !ok {
			r.compiled[s] = compileFor(s)
		}

		if strings.HasPrefix(key, ".") {
			r.byExt[strings.ToLower(key)] = s
		} else {
			r.byLanguage[strings.ToLower(key)] = s
		}
	}

	return r
}

// Patterns returns the marker recognizers for a document.
func (r *Resolver) Patterns(languageID, fileNameHint string) Patterns {
	s := r.syntaxFor(languageID, fileNameHint)

	if p, ok := r.compiled[s]; ok {
		return p
	}

	return patternCache[s]
}

// MarkerLine composes the anchor line for a document, e.g. "// clickup:abc"
// or "<!-- clickup:abc -->" for HTML-family files.
func (r *Resolver) MarkerLine(languageID, fileNameHint, taskID string) string {
	s := r.syntaxFor(languageID, fileNameHint)

	if s == syntaxHTML {
		return "<!-- clickup:" + taskID + " -->"
	}

	return s.linePrefix + " clickup:" + taskID
}

func (r *Resolver) syntaxFor(languageID, fileNameHint string) syntax {
	ext := strings.ToLower(filepath.Ext(fileNameHint))

	if s, ok := r.byExt[ext]; ok {
		return s
	}

	if s, ok := r.byLanguage[strings.ToLower(languageID)]; ok {
		return s
	}

	return resolveSyntax(languageID, fileNameHint)
}

var defaultResolver = NewResolver(nil)

// ResolvePatterns returns the marker recognizers for a document using the
// built-in tables alone. The language id wins when known; otherwise the
// file extension decides, and unknown languages fall back to `//` line
// comments.
//
// Markdown is special-cased on extension: editors sometimes report .md files
// under a different language id, and an HTML-comment anchor is the only form
// that survives rendering, so the extension overrides the reported id.
func ResolvePatterns(languageID, fileNameHint string) Patterns {
	return defaultResolver.Patterns(languageID, fileNameHint)
}

// MarkerLine is Resolver.MarkerLine on the built-in tables.
func MarkerLine(languageID, fileNameHint, taskID string) string {
	return defaultResolver.MarkerLine(languageID, fileNameHint, taskID)
}

// KnownExtensions returns every file extension with a known comment
// syntax, sorted. Watch mode uses it to skip files that cannot carry a
// recognizable marker.
func KnownExtensions() []string {
	exts := make([]string, 0, len(languageByExtension))
	for ext := range languageByExtension {
		exts = append(exts, ext)
	}

	sort.Strings(exts)

	return exts
}

// ValidTaskID reports whether id is usable inside a marker.
func ValidTaskID(id string) bool {
	return taskIDRe.MatchString(id)
}

var taskIDRe = regexp.MustCompile(`^` + taskIDPattern + `$`)

func resolveSyntax(languageID, fileNameHint string) syntax {
	ext := strings.ToLower(filepath.Ext(fileNameHint))

	if ext == ".md" || ext == ".markdown" {
		return syntaxHTML
	}

	id := strings.ToLower(languageID)

	if s, ok := syntaxByLanguage[id]; ok {
		return s
	}

	if lang, ok := languageByExtension[ext]; ok {
		return syntaxByLanguage[lang]
	}

	return defaultSyntax
}
