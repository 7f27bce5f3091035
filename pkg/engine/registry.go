package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Constructor 根据配置创建引擎
type Constructor func(opts Options) (Engine, error)

// Registry 引擎注册表，名称到构造函数的映射
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry 创建空的注册表
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
	}
}

// Register 注册引擎构造函数，名称不区分大小写
func (r *Registry) Register(name string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("engine name is empty")
	}
	if _, exists := r.constructors[key]; exists {
		return fmt.Errorf("engine %s already registered", key)
	}
	r.constructors[key] = ctor
	return nil
}

// MustRegister 注册引擎，重复注册时 panic
func (r *Registry) MustRegister(name string, ctor Constructor) {
	if err := r.Register(name, ctor); err != nil {
		panic(err)
	}
}

// Has 判断引擎是否已注册
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.constructors[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Create 按名称创建引擎。未知名称返回 ErrUnknownEngine，并附带相近名称的建议。
func (r *Registry) Create(name string, opts Options) (Engine, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[strings.ToLower(strings.TrimSpace(name))]
	r.mu.RUnlock()

	if !ok {
		if s := r.Suggest(name); len(s) > 0 {
			return nil, fmt.Errorf("%w: %q (did you mean %s?)", ErrUnknownEngine, name, strings.Join(s, ", "))
		}
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownEngine, name, strings.Join(r.List(), ", "))
	}
	return ctor(opts.WithDefaults())
}

// List 按字母顺序列出已注册的引擎
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Suggest 返回与 name 相近的已注册名称
func (r *Registry) Suggest(name string) []string {
	return Suggest(name, r.List())
}

// Suggest 在候选名称中查找与 name 相近的名称：子序列模糊匹配或编辑距离不超过 2
func Suggest(name string, candidates []string) []string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}

	seen := make(map[string]bool)
	var out []string

	ranks := fuzzy.RankFindFold(name, candidates)
	sort.Sort(ranks)
	for _, rank := range ranks {
		if !seen[rank.Target] {
			seen[rank.Target] = true
			out = append(out, rank.Target)
		}
	}
	for _, c := range candidates {
		if !seen[c] && fuzzy.LevenshteinDistance(name, strings.ToLower(c)) <= 2 {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
