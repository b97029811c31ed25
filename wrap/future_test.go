package wrap_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tracemark/wrap"
)

var _ = Describe("Future", func() {
	var f *wrap.Future

	BeforeEach(func() {
		f = wrap.NewFuture()
	})

	It("should fire the resolve continuation once", func() {
		count := 0
		f.Then(func(result interface{}) {
			count++
			Expect(result).To(Equal("value"))
		}, func(err error) {
			Fail("reject continuation must not fire")
		})

		f.Resolve("value")
		f.Resolve("again")
		f.Reject(errors.New("late"))

		Expect(count).To(Equal(1))
	})

	It("should fire the reject continuation once", func() {
		count := 0
		f.Then(func(result interface{}) {
			Fail("resolve continuation must not fire")
		}, func(err error) {
			count++
			Expect(err).To(MatchError("boom"))
		})

		f.Reject(errors.New("boom"))
		f.Reject(errors.New("again"))
		f.Resolve("late")

		Expect(count).To(Equal(1))
	})

	It("should fire continuations registered after settlement", func() {
		f.Resolve("value")

		fired := false
		f.Then(func(result interface{}) {
			fired = true
			Expect(result).To(Equal("value"))
		}, nil)

		Expect(fired).To(BeTrue())
	})

	It("should fire every registered continuation", func() {
		count := 0
		f.Then(func(interface{}) { count++ }, nil)
		f.Then(func(interface{}) { count++ }, nil)

		f.Resolve("value")

		Expect(count).To(Equal(2))
	})

	It("should expose the settled outcome", func() {
		f.Resolve("value")

		result, err := f.Result()
		Expect(err).ToNot(HaveOccurred())
		Expect(result).To(Equal("value"))
	})

	It("should close the done channel on settlement", func() {
		Expect(f.Done()).ToNot(BeClosed())

		f.Reject(errors.New("boom"))

		Expect(f.Done()).To(BeClosed())
	})
})
