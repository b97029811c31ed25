package wrap_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tracemark/wrap"
)

var _ = Describe("Table", func() {
	var table *wrap.Table

	BeforeEach(func() {
		table = wrap.NewTable("kvstore")
	})

	It("should dispatch to registered methods", func() {
		table.Register("Echo", func(args ...interface{}) (interface{}, error) {
			return args[0], nil
		})

		result, err := table.Call("Echo", "hello")

		Expect(err).ToNot(HaveOccurred())
		Expect(result).To(Equal("hello"))
	})

	It("should fail calls to unknown methods", func() {
		_, err := table.Call("Missing")

		Expect(err).To(MatchError(wrap.ErrUnknownMethod))
	})

	It("should list method names in registration order", func() {
		table.Register("B", func(...interface{}) (interface{}, error) {
			return nil, nil
		})
		table.Register("A", func(...interface{}) (interface{}, error) {
			return nil, nil
		})

		Expect(table.MethodNames()).To(Equal([]string{"B", "A"}))
	})

	It("should panic on duplicate registration", func() {
		noop := func(...interface{}) (interface{}, error) { return nil, nil }
		table.Register("Get", noop)

		Expect(func() { table.Register("Get", noop) }).To(Panic())
	})

	It("should panic when replacing an unregistered method", func() {
		Expect(func() {
			table.SetMethod("Get",
				func(...interface{}) (interface{}, error) { return nil, nil })
		}).To(Panic())
	})

	It("should panic on an empty table name", func() {
		Expect(func() { wrap.NewTable("") }).To(Panic())
	})
})
