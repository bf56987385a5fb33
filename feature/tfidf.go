package feature

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/sparse"
)

// Document 是一条待向量化的目录记录（书籍描述、类型、标签拼接后的文本）。
type Document struct {
	ID   string
	Text string
	Meta map[string]any
}

// 两个及以上的 Unicode 字母/数字/下划线（含组合附加符号），"café" 是一个词。
var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)

// TFIDF 是词频-逆文档频率向量化器。
//
//   - 分词：Unicode 字母数字（至少两个字符），统一小写，可选停用词
//   - idf(t) = ln((1+n)/(1+df(t))) + 1（平滑）
//   - 行向量 = 原始词频 * idf，然后 L2 归一化
//
// 词表按字典序编号，因此同一语料总是得到同样的维度顺序。
type TFIDF struct {
	StopWords map[string]struct{}

	// MinDF 词至少出现在多少篇文档中才进入词表
	MinDF int

	vocab map[string]int
	terms []string
	idf   []float64
}

// TFIDFOption 是 TFIDF 的配置项。
type TFIDFOption func(*TFIDF)

// WithStopWords 设置停用词。
func WithStopWords(words ...string) TFIDFOption {
	return func(t *TFIDF) {
		if t.StopWords == nil {
			t.StopWords = make(map[string]struct{}, len(words))
		}
		for _, w := range words {
			t.StopWords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithMinDF 设置最小文档频率。
func WithMinDF(n int) TFIDFOption {
	return func(t *TFIDF) { t.MinDF = n }
}

// NewTFIDF 创建向量化器。
func NewTFIDF(opts ...TFIDFOption) *TFIDF {
	t := &TFIDF{MinDF: 1}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TFIDF) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(t.StopWords) == 0 {
		return raw
	}
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := t.StopWords[tok]; !stop {
			out = append(out, tok)
		}
	}
	return out
}

// Fit 从语料学习词表与 idf。
func (t *TFIDF) Fit(docs []Document) error {
	if len(docs) == 0 {
		return core.NewInvalidInputError(core.ModuleFeature, "tfidf: empty corpus")
	}
	df := make(map[string]int)
	for _, d := range docs {
		seen := make(map[string]struct{})
		for _, tok := range t.tokenize(d.Text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term, n := range df {
		if n >= t.MinDF {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return core.NewInvalidInputError(core.ModuleFeature, "tfidf: empty vocabulary")
	}
	sort.Strings(terms)

	n := float64(len(docs))
	t.terms = terms
	t.vocab = make(map[string]int, len(terms))
	t.idf = make([]float64, len(terms))
	for i, term := range terms {
		t.vocab[term] = i
		t.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return nil
}

// Dim 返回词表大小。
func (t *TFIDF) Dim() int { return len(t.terms) }

// Vocabulary 返回词表（按维度顺序）的副本。
func (t *TFIDF) Vocabulary() []string {
	out := make([]string, len(t.terms))
	copy(out, t.terms)
	return out
}

// Transform 把文本转为 L2 归一化的 TF-IDF 向量；不含任何词表词时返回零向量。
func (t *TFIDF) Transform(text string) sparse.Vector {
	counts := make(map[int]float64)
	for _, tok := range t.tokenize(text) {
		if i, ok := t.vocab[tok]; ok {
			counts[i]++
		}
	}
	idx := make([]int, 0, len(counts))
	vals := make([]float64, 0, len(counts))
	for i, c := range counts {
		idx = append(idx, i)
		vals = append(vals, c*t.idf[i])
	}
	v, err := sparse.New(t.Dim(), idx, vals)
	if err != nil {
		// 索引来自词表，不会越界
		panic(fmt.Sprintf("tfidf: %v", err))
	}
	if nv, err := v.Normalize(); err == nil {
		return nv
	}
	return v
}

// BuildStore 在语料上拟合 TF-IDF 并构建特征库，返回特征库与已拟合的向量化器。
func BuildStore(docs []Document, opts ...TFIDFOption) (*Store, *TFIDF, error) {
	t := NewTFIDF(opts...)
	if err := t.Fit(docs); err != nil {
		return nil, nil, err
	}
	b := NewBuilder(t.Dim())
	for _, d := range docs {
		if err := b.Add(d.ID, t.Transform(d.Text), d.Meta); err != nil {
			return nil, nil, fmt.Errorf("build feature store: %w", err)
		}
	}
	return b.Build(), t, nil
}
