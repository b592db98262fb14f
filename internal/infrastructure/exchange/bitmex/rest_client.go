package bitmex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"deltarelay/internal/application/port"
)

// DefaultRestURL 合约列表，只取需要的列
const DefaultRestURL = "https://www.bitmex.com/api/v1/instrument?columns=symbol,tickSize&start=0&count=500"

// InstrumentClient BitMEX 合约元数据 REST 客户端
type InstrumentClient struct {
	url    string
	client *http.Client
}

// NewInstrumentClient 创建 BitMEX REST 客户端
func NewInstrumentClient(url string) *InstrumentClient {
	if url == "" {
		url = DefaultRestURL
	}
	return &InstrumentClient{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Instruments 获取当前合约列表
func (c *InstrumentClient) Instruments(ctx context.Context) ([]port.Instrument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bitmex api error: %d %s", resp.StatusCode, string(body))
	}

	var results []port.Instrument
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}
	return results, nil
}

var _ port.InstrumentSource = (*InstrumentClient)(nil)
