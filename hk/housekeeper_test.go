package hk_test

import (
	"sync/atomic"
	"time"

	"github.com/shmbus/shmbus/hk"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("periodic callbacks", func() {
	It("invokes a registered callback repeatedly on its interval", func() {
		var calls int32
		hk.Reg("counter", func() time.Duration {
			atomic.AddInt32(&calls, 1)
			return 0
		}, 10*time.Millisecond)
		defer hk.DefaultHK.Unreg("counter")

		Eventually(func() int32 {
			return atomic.LoadInt32(&calls)
		}, time.Second, 10*time.Millisecond).Should(BeNumerically(">=", 3))
	})

	It("lets a callback extend its own next interval", func() {
		var calls int32
		hk.Reg("backoff", func() time.Duration {
			n := atomic.AddInt32(&calls, 1)
			if n == 1 {
				return time.Hour // back off hard after the first firing
			}
			return 0
		}, 10*time.Millisecond)
		defer hk.DefaultHK.Unreg("backoff")

		Eventually(func() int32 {
			return atomic.LoadInt32(&calls)
		}, time.Second, 10*time.Millisecond).Should(BeNumerically(">=", 1))

		Consistently(func() int32 {
			return atomic.LoadInt32(&calls)
		}, 200*time.Millisecond, 20*time.Millisecond).Should(Equal(int32(1)))
	})

	It("stops firing once unregistered", func() {
		var calls int32
		hk.Reg("oneshot-ish", func() time.Duration {
			atomic.AddInt32(&calls, 1)
			return 0
		}, 10*time.Millisecond)

		Eventually(func() int32 {
			return atomic.LoadInt32(&calls)
		}, time.Second, 10*time.Millisecond).Should(BeNumerically(">=", 1))

		hk.DefaultHK.Unreg("oneshot-ish")
		seen := atomic.LoadInt32(&calls)
		Consistently(func() int32 {
			return atomic.LoadInt32(&calls)
		}, 100*time.Millisecond, 10*time.Millisecond).Should(Equal(seen))
	})
})
