package types

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const hexAlphabet = "0123456789abcdefABCDEF"

func genHexAddress() gopter.Gen {
	return gen.SliceOfN(40, gen.IntRange(0, len(hexAlphabet)-1)).Map(func(idx []int) string {
		var sb strings.Builder
		sb.WriteString("0x")
		for _, i := range idx {
			sb.WriteByte(hexAlphabet[i])
		}
		return sb.String()
	})
}

func TestAddressNormalizationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("upper and lower case spellings normalize to the same key", prop.ForAll(
		func(address string) bool {
			upper := "0x" + strings.ToUpper(address[2:])
			return NormalizeAddress(upper) == NormalizeAddress(address)
		},
		genHexAddress(),
	))

	properties.Property("normalization is idempotent", prop.ForAll(
		func(address string) bool {
			once := NormalizeAddress(address)
			return NormalizeAddress(once) == once
		},
		genHexAddress(),
	))

	properties.Property("generated addresses stay valid after normalization", prop.ForAll(
		func(address string) bool {
			return IsValidAddress(address) && IsValidAddress(NormalizeAddress(address))
		},
		genHexAddress(),
	))

	properties.TestingRun(t)
}
