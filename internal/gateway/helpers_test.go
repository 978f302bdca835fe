package gateway_test

import "github.com/bytedance/sonic"

func jsonUnmarshal(data []byte, v any) error {
	return sonic.ConfigStd.Unmarshal(data, v)
}
