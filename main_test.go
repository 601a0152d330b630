package main

import (
	"testing"

	"github.com/uramazingdanc/flowboardeai/domain"
)

func TestRedisOptions(t *testing.T) {
	opts := redisOptions("cache.example.net:6380,password=s3cret,ssl=True,abortConnect=False")
	if opts.Addr != "cache.example.net:6380" || opts.Password != "s3cret" || opts.TLSConfig == nil {
		t.Fatalf("unexpected options %+v", opts)
	}
	opts = redisOptions("redis://:pw@localhost:6379/2")
	if opts.Addr != "localhost:6379" || opts.Password != "pw" || opts.DB != 2 || opts.TLSConfig != nil {
		t.Fatalf("unexpected url options %+v", opts)
	}
}

func TestTableSpecsOverrides(t *testing.T) {
	t.Setenv("PROFILES_TABLE", "users")
	specs := tableSpecs()
	if specs[domain.TableProfiles].Name != "users" || specs[domain.TableProfiles].KeyColumn != "id" {
		t.Fatalf("override not applied: %+v", specs[domain.TableProfiles])
	}
	if specs[domain.TableTasks].Name != "tasks" {
		t.Fatalf("unexpected tasks table %+v", specs[domain.TableTasks])
	}
}
