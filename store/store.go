// Package store 提供 core.Store / core.KeyValueStore 的实现，接口定义在 core 包。
//
//   - MemoryStore：内存实现，测试与单机部署
//   - RedisStore：go-redis 实现，生产环境
//
// 使用场景：特征库持久化（feature.SaveToStore）、热门榜单（recall.Popularity.Publish）、
// 用户排除列表（filter.ExcludeFilter）。
//
//	var kv core.KeyValueStore = store.NewMemoryStore()
package store
