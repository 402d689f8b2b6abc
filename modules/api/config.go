package api

import "reward-polls/modules/config"

type apiConfig struct {
	HostAddr       string
	AllowedOrigins []string
}

type apiConfigStruct struct {
	*config.Config[apiConfig]
}

type ApiConfig = *apiConfigStruct

func NewApiConfig(dataDir ...string) ApiConfig {
	var dataDirPtr *string
	if len(dataDir) > 0 {
		dataDirPtr = &dataDir[0]
	}

	return &apiConfigStruct{config.New(apiConfig{
		HostAddr:       "0.0.0.0:8080",
		AllowedOrigins: []string{"*"},
	}, dataDirPtr)}
}

func (ac *apiConfigStruct) SetHostAddr(addr string) error {
	return ac.Update(func(c *apiConfig) {
		c.HostAddr = addr
	})
}

func (ac *apiConfigStruct) GetHostAddr() string {
	return ac.Get().HostAddr
}

func (ac *apiConfigStruct) SetAllowedOrigins(origins ...string) error {
	return ac.Update(func(c *apiConfig) {
		c.AllowedOrigins = origins
	})
}
