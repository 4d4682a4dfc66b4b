package config

import (
	"os"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server               Server               `yaml:"server"`
	Platforms            []string             `yaml:"platforms"`
	Images               Images               `yaml:"images"`
	ServiceWorkerChecker ServiceWorkerChecker `yaml:"serviceWorkerChecker"`
}

type Server struct {
	Listen            string `yaml:"listen"`
	CacheBackend      string `yaml:"cacheBackend"` // redis, memcached
	RedisAddr         string `yaml:"redisAddr"`
	RedisPassword     string `yaml:"redisPassword"`
	RedisDB           int    `yaml:"redisDB"`
	MemcachedAddr     string `yaml:"memcachedAddr"`
	RuleEngineURL     string `yaml:"ruleEngineUrl"`
	ValidationMemoMs  int    `yaml:"validationMemoMs"` // 0 disables memoization
	ProjectBuilderURL string `yaml:"projectBuilderUrl"`
	OutputDir         string `yaml:"outputDir"`
	EnableTrace       bool   `yaml:"enableTrace"`
	TraceEndpoint     string `yaml:"traceEndpoint"`
}

type Images struct {
	GenerationSvcURL string `yaml:"generationSvcUrl"`
}

type ServiceWorkerChecker struct {
	TimeoutMs int `yaml:"timeoutMs"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Server.Listen == "" {
		config.Server.Listen = ":8000"
	}
	if config.Server.CacheBackend == "" {
		config.Server.CacheBackend = "redis"
	}
	if config.ServiceWorkerChecker.TimeoutMs == 0 {
		config.ServiceWorkerChecker.TimeoutMs = 7000
	}

	return config, nil
}
