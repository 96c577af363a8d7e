package i18n

import (
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

//go:embed locales/*.json
var locales embed.FS

var (
	mu           sync.RWMutex
	translations = make(map[string]map[string]string)
)

var DefaultLang = "en"

func init() {
	sub, err := fs.Sub(locales, "locales")
	if err == nil {
		err = LoadTranslations(sub)
	}
	if err != nil {
		panic(err)
	}
}

// LoadTranslations reads every <lang>.json catalog in fsys. Keys from later loads override earlier ones.
func LoadTranslations(fsys fs.FS) error {
	files, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return err
	}
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return err
		}
		var t map[string]string
		if err := json.Unmarshal(data, &t); err != nil {
			return errors.Wrapf(err, "parsing %s", file)
		}

		lang := strings.TrimSuffix(path.Base(file), ".json")
		mu.Lock()
		if translations[lang] == nil {
			translations[lang] = make(map[string]string, len(t))
		}
		for k, v := range t {
			translations[lang][k] = v
		}
		mu.Unlock()
	}
	return nil
}

func T(lang, key string) string {
	mu.RLock()
	val, ok := translations[lang][key]
	mu.RUnlock()
	if ok {
		return val
	}
	// Fallback to English
	if lang != DefaultLang {
		return T(DefaultLang, key)
	}
	return key
}

func DetectLanguage(r *http.Request) string {
	accept := r.Header.Get("Accept-Language")
	if accept == "" {
		return DefaultLang
	}

	// Example: fr-CH, fr;q=0.9, en;q=0.8, de;q=0.7, *;q=0.5
	mu.RLock()
	defer mu.RUnlock()
	for _, part := range strings.Split(accept, ",") {
		lang := strings.TrimSpace(strings.Split(part, ";")[0])
		if len(lang) >= 2 {
			lang = strings.ToLower(lang[:2]) // e.g., "en-US" -> "en"
			if _, ok := translations[lang]; ok {
				return lang
			}
		}
	}
	return DefaultLang
}
