package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Port: 8080},
		Generator: GeneratorConfig{Subject: "scheduler.generate"},
		Jobs: JobsConfig{
			Store:        "memory",
			Workers:      2,
			QueueSize:    8,
			Ceiling:      time.Minute,
			Retention:    time.Hour,
			ReapInterval: time.Second,
		},
		Tracing: TracingConfig{SampleRatio: 1},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("加载默认配置失败: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("期望默认端口 8080，实际: %d", cfg.Server.Port)
	}
	if cfg.Jobs.Store != "memory" {
		t.Errorf("期望默认任务存储 memory，实际: %s", cfg.Jobs.Store)
	}
	if cfg.Jobs.Ceiling != 10*time.Minute {
		t.Errorf("期望默认任务超时 10m，实际: %s", cfg.Jobs.Ceiling)
	}
	if cfg.Generator.Subject != "scheduler.generate" {
		t.Errorf("期望默认 subject scheduler.generate，实际: %s", cfg.Generator.Subject)
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("期望校验通过，实际: %v", err)
	}
}

func TestValidate_RedisStoreRequiresRedis(t *testing.T) {
	cfg := validConfig()
	cfg.Jobs.Store = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatal("期望 redis 未开启时校验失败")
	}

	cfg.Redis.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("期望开启 redis 后校验通过，实际: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"端口越界":   func(c *Config) { c.Server.Port = 70000 },
		"未知存储":   func(c *Config) { c.Jobs.Store = "etcd" },
		"无 worker": func(c *Config) { c.Jobs.Workers = 0 },
		"无超时":    func(c *Config) { c.Jobs.Ceiling = 0 },
		"采样率越界":  func(c *Config) { c.Tracing.SampleRatio = 2 },
		"空 subject": func(c *Config) { c.Generator.Subject = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("期望校验失败: %s", name)
			}
		})
	}
}
