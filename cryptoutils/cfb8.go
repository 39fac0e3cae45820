package cryptoutils

import "crypto/cipher"

// cfb8 implements cipher.Stream for CFB mode with an 8-bit segment size.
// Each byte is XORed with the first byte of E(register), then the ciphertext
// byte is shifted into the register. Ciphertext length equals plaintext
// length and a corrupted byte only garbles the following block.
type cfb8 struct {
	block    cipher.Block
	register []byte
	out      []byte
	decrypt  bool
}

// NewCFB8Encrypter returns a Stream which encrypts with CFB-8 using block
// and iv. len(iv) must equal the block size.
func NewCFB8Encrypter(block cipher.Block, iv []byte) cipher.Stream {
	return newCFB8(block, iv, false)
}

// NewCFB8Decrypter returns a Stream which decrypts with CFB-8 using block
// and iv. len(iv) must equal the block size.
func NewCFB8Decrypter(block cipher.Block, iv []byte) cipher.Stream {
	return newCFB8(block, iv, true)
}

func newCFB8(block cipher.Block, iv []byte, decrypt bool) *cfb8 {
	blockSize := block.BlockSize()
	if len(iv) != blockSize {
		panic("cryptoutils: IV length must equal block size")
	}

	register := make([]byte, blockSize)
	copy(register, iv)

	return &cfb8{
		block:    block,
		register: register,
		out:      make([]byte, blockSize),
		decrypt:  decrypt,
	}
}

func (x *cfb8) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("cryptoutils: output smaller than input")
	}

	last := len(x.register) - 1
	for i, in := range src {
		x.block.Encrypt(x.out, x.register)
		out := in ^ x.out[0]

		// the register is fed with ciphertext in both directions
		feedback := out
		if x.decrypt {
			feedback = in
		}
		copy(x.register, x.register[1:])
		x.register[last] = feedback

		dst[i] = out
	}
}
