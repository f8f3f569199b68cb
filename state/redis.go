package state

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// redisState shares values between collectors. Keys are published on change
// so that every collector refreshes its memory copy.
type redisState[K comparable, V any] struct {
	memory    *memoryState[K, V]
	urlParsed *url.URL
	rPrefix   string
	db        *redis.Client
	ctx       context.Context
	cancel    context.CancelFunc
	wg        *sync.WaitGroup
}

const redisOpAdd = 1

func (r *redisState[K, V]) init() error {
	r.rPrefix = r.urlParsed.Query().Get("prefix")
	if r.rPrefix == "" {
		return fmt.Errorf("'prefix' name is required on redis state engine, place it on your URL query string")
	}
	// go-redis rejects unknown query options
	clean := *r.urlParsed
	q := clean.Query()
	q.Del("prefix")
	clean.RawQuery = q.Encode()
	opts, err := redis.ParseURL(clean.String())
	if err != nil {
		return err
	}
	r.db = redis.NewClient(opts)

	iter := r.db.Scan(r.ctx, 0, r.rPrefix+"*", 0).Iterator()
	for iter.Next(r.ctx) {
		kRaw := iter.Val()
		vRaw, err := r.db.Get(r.ctx, kRaw).Bytes()
		if err != nil {
			r.db.Close()
			return err
		}
		k, v, err := r.decode(kRaw, vRaw)
		if err != nil {
			r.db.Close()
			return err
		}
		_ = r.memory.Add(k, v)
	}
	if err = iter.Err(); err != nil {
		r.db.Close()
		return err
	}

	ps := r.db.PSubscribe(r.ctx, r.rPrefix+"*")
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ps.Close()
		r.follow(ps.Channel())
	}()
	return nil
}

func (r *redisState[K, V]) decode(kRaw string, vRaw []byte) (k K, v V, err error) {
	kRaw, _ = strings.CutPrefix(kRaw, r.rPrefix)
	if err = json.Unmarshal([]byte(kRaw), &k); err != nil {
		return k, v, err
	}
	err = json.Unmarshal(vRaw, &v)
	return k, v, err
}

func (r *redisState[K, V]) follow(ch <-chan *redis.Message) {
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			op, err := strconv.Atoi(msg.Payload)
			if err != nil {
				continue
			}
			if op != redisOpAdd {
				continue
			}
			vRaw, err := r.db.Get(r.ctx, msg.Channel).Bytes()
			if err != nil {
				continue
			}
			if k, v, err := r.decode(msg.Channel, vRaw); err == nil {
				_ = r.memory.Add(k, v)
			}
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *redisState[K, V]) Close() error {
	r.cancel()
	r.wg.Wait()
	return r.db.Close()
}

func (r *redisState[K, V]) Get(key K) (V, error) {
	return r.memory.Get(key)
}

func (r *redisState[K, V]) Add(key K, value V) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	kStr := r.rPrefix + string(k)
	if err = r.db.Set(r.ctx, kStr, v, 0).Err(); err != nil {
		return err
	}
	// the local copy must not wait for our own notification
	if err = r.memory.Add(key, value); err != nil {
		return err
	}
	return r.db.Publish(r.ctx, kStr, redisOpAdd).Err()
}
