// Package encryption rewrites a plaintext table into its encrypted form.
//
// For a source table with N integer columns the output table has 2N+2
// BIG_INTEGER columns:
//
//	PAILLIER_<c0> ... PAILLIER_<cN-1>   homomorphic ciphertexts
//	OPE_<c0>      ... OPE_<cN-1>        order-preserving ciphertexts
//	PAILLIER_MODULUS PAILLIER_G         the Paillier public key, on every row
//
// Row i of the output is the encryption of row i of the source scan. The key
// pairs used are saved to the keystore under the output table's id.
package encryption
