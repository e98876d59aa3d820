// Copyright 2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var ErrCacheMiss = errors.New("key not found in cache")

var ctx = context.Background()
var rdb *redis.Client
var cache *lru.Cache

// SetupCache initializes the in-process LRU cache and, when cache.redis is
// set, a shared redis tier. Values are lz4-compressed before caching.
func SetupCache() {
	var err error
	if viper.GetBool("cache.redis") {
		opt, err := redis.ParseURL(viper.GetString("cache.redis_url"))
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
	}

	size := viper.GetInt("cache.local_size")
	if size == 0 {
		size = 1024
	}
	cache, err = lru.New(size)
	if err != nil {
		log.Error().Err(err).Msg("could not create LRU cache")
		os.Exit(1)
	}
}

// CacheSet stores bytes under key in the local tier and redis when enabled.
func CacheSet(key string, data []byte) error {
	if cache == nil {
		SetupCache()
	}
	compressed, err := Compress(data)
	if err != nil {
		return err
	}
	cache.Add(key, compressed)

	if rdb != nil {
		ttl := viper.GetDuration("cache.redis_ttl")
		if ttl == 0 {
			ttl = 24 * time.Hour
		}
		if err := rdb.Set(ctx, key, compressed, ttl).Err(); err != nil {
			log.Warn().Err(err).Str("Key", key).Msg("could not store value in redis")
		}
	}
	return nil
}

// CacheGet retrieves bytes for key, checking the local tier first.
func CacheGet(key string) ([]byte, error) {
	if cache == nil {
		SetupCache()
	}
	if val, ok := cache.Get(key); ok {
		return Decompress(val.([]byte))
	}

	if rdb != nil {
		val, err := rdb.Get(ctx, key).Bytes()
		if err == nil {
			cache.Add(key, val)
			return Decompress(val)
		}
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("Key", key).Msg("redis get failed")
		}
	}
	return nil, ErrCacheMiss
}
