package core

// RecallConfig 是召回相关的配置接口，用于提供默认值。
type RecallConfig interface {
	// DefaultTopN 返回默认的最终返回数量
	DefaultTopN() int

	// DefaultCandidateK 返回混合推荐中每个模型的候选数量
	DefaultCandidateK() int

	// DefaultRank 返回默认的矩阵分解秩
	DefaultRank() int
}

// DefaultRecallConfig 是默认的召回配置实现。
type DefaultRecallConfig struct{}

func (c *DefaultRecallConfig) DefaultTopN() int {
	return 10
}

func (c *DefaultRecallConfig) DefaultCandidateK() int {
	return 1000
}

func (c *DefaultRecallConfig) DefaultRank() int {
	return 23
}
