package bitmex

import "errors"

// 错误分类：连接级错误触发重连，消息级错误只丢弃对应的帧或单条更新
var (
	// ErrConfig 配置错误（交易对不被支持等），启动前即失败
	ErrConfig = errors.New("bitmex: invalid configuration")
	// ErrTransport 建连、发送、接收失败或超时
	ErrTransport = errors.New("bitmex: transport failure")
	// ErrMetadataFetch REST 合约列表获取失败
	ErrMetadataFetch = errors.New("bitmex: instrument metadata fetch failed")
	// ErrDecode 帧无法解析为预期结构
	ErrDecode = errors.New("bitmex: frame decode failed")
	// ErrUnknownSymbol 更新引用了索引表中不存在的合约
	ErrUnknownSymbol = errors.New("bitmex: unknown symbol")
	// ErrInvalidID id 超出该合约的偏移量，会得到负价格
	ErrInvalidID = errors.New("bitmex: id out of range")
	// ErrNegativeSize 数量为负
	ErrNegativeSize = errors.New("bitmex: negative size")
	// ErrSink 发布或归档失败
	ErrSink = errors.New("bitmex: sink failure")
)
