package redeem

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/btc-parachain/core/internal/relay"
)

// opcodes used to classify a scriptPubKey's accepted shape.
const (
	opDup         = 0x76
	opHash160     = 0xa9
	opEqualVerify = 0x88
	opCheckSig    = 0xac
	opEqual       = 0x87
	op0           = 0x00
	opReturn      = 0x6a
)

// TxOut is one parsed transaction output.
type TxOut struct {
	ValueSatoshis uint64
	Script        []byte
}

// Transaction is a minimally-parsed Bitcoin transaction: enough structure
// to classify and sum outputs without needing full script interpretation.
type Transaction struct {
	TxID    relay.Hash
	Outputs []TxOut
}

// ParseTransaction decodes a raw Bitcoin transaction, tolerating (and
// skipping over) the segwit marker/flag and witness data if present,
// since neither affects output accounting or the legacy txid.
func ParseTransaction(raw []byte) (Transaction, error) {
	r := bytes.NewReader(raw)
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return Transaction{}, ErrMalformedTransaction
	}

	segwit := false
	markerPos := len(raw) - r.Len()
	if r.Len() >= 2 {
		peek := make([]byte, 2)
		if _, err := r.Read(peek); err != nil {
			return Transaction{}, ErrMalformedTransaction
		}
		if peek[0] == 0x00 && peek[1] == 0x01 {
			segwit = true
		} else {
			if _, err := r.Seek(int64(markerPos), 0); err != nil {
				return Transaction{}, ErrMalformedTransaction
			}
		}
	}

	inCount, err := readVarInt(r)
	if err != nil {
		return Transaction{}, err
	}
	for i := uint64(0); i < inCount; i++ {
		if err := skipInput(r); err != nil {
			return Transaction{}, err
		}
	}

	outCount, err := readVarInt(r)
	if err != nil {
		return Transaction{}, err
	}
	outputs := make([]TxOut, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		var value uint64
		if err := binary.Read(r, binary.LittleEndian, &value); err != nil {
			return Transaction{}, ErrMalformedTransaction
		}
		scriptLen, err := readVarInt(r)
		if err != nil {
			return Transaction{}, err
		}
		script := make([]byte, scriptLen)
		if _, err := readFullTx(r, script); err != nil {
			return Transaction{}, err
		}
		outputs = append(outputs, TxOut{ValueSatoshis: value, Script: script})
	}

	if segwit {
		for i := uint64(0); i < inCount; i++ {
			itemCount, err := readVarInt(r)
			if err != nil {
				return Transaction{}, err
			}
			for j := uint64(0); j < itemCount; j++ {
				itemLen, err := readVarInt(r)
				if err != nil {
					return Transaction{}, err
				}
				buf := make([]byte, itemLen)
				if _, err := readFullTx(r, buf); err != nil {
					return Transaction{}, err
				}
			}
		}
	}

	var locktime uint32
	if err := binary.Read(r, binary.LittleEndian, &locktime); err != nil {
		return Transaction{}, ErrMalformedTransaction
	}

	txid, err := legacyTxID(raw, version, inCount, outputs, locktime)
	if err != nil {
		return Transaction{}, err
	}

	return Transaction{TxID: txid, Outputs: outputs}, nil
}

func skipInput(r *bytes.Reader) error {
	var prevTxid [32]byte
	if _, err := readFullTx(r, prevTxid[:]); err != nil {
		return err
	}
	var prevIndex uint32
	if err := binary.Read(r, binary.LittleEndian, &prevIndex); err != nil {
		return ErrMalformedTransaction
	}
	scriptLen, err := readVarInt(r)
	if err != nil {
		return err
	}
	buf := make([]byte, scriptLen)
	if _, err := readFullTx(r, buf); err != nil {
		return err
	}
	var sequence uint32
	if err := binary.Read(r, binary.LittleEndian, &sequence); err != nil {
		return ErrMalformedTransaction
	}
	return nil
}

func readFullTx(r *bytes.Reader, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := r.Read(buf)
	if err != nil || n != len(buf) {
		return n, ErrMalformedTransaction
	}
	return n, nil
}

func readVarInt(r *bytes.Reader) (uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, ErrMalformedTransaction
	}
	switch {
	case b < 0xfd:
		return uint64(b), nil
	case b == 0xfd:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, ErrMalformedTransaction
		}
		return uint64(v), nil
	case b == 0xfe:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, ErrMalformedTransaction
		}
		return uint64(v), nil
	default:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, ErrMalformedTransaction
		}
		return v, nil
	}
}

// legacyTxID re-walks raw to reassemble the non-witness serialization
// (inputs, the already-parsed outputs, version, locktime — witness data
// excluded) and double-SHA256s it, per Bitcoin's txid definition.
func legacyTxID(raw []byte, version uint32, inCount uint64, outputs []TxOut, locktime uint32) (relay.Hash, error) {
	r := bytes.NewReader(raw)
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return relay.Hash{}, ErrMalformedTransaction
	}
	markerPos := len(raw) - r.Len()
	segwit := false
	if r.Len() >= 2 {
		peek := make([]byte, 2)
		if _, err := r.Read(peek); err != nil {
			return relay.Hash{}, ErrMalformedTransaction
		}
		if peek[0] == 0x00 && peek[1] == 0x01 {
			segwit = true
		} else {
			if _, err := r.Seek(int64(markerPos), 0); err != nil {
				return relay.Hash{}, ErrMalformedTransaction
			}
		}
	}

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, version)

	n, err := readVarInt(r)
	if err != nil {
		return relay.Hash{}, err
	}
	writeVarInt(&buf, n)
	for i := uint64(0); i < n; i++ {
		var prevTxid [32]byte
		if _, err := readFullTx(r, prevTxid[:]); err != nil {
			return relay.Hash{}, err
		}
		var prevIndex uint32
		if err := binary.Read(r, binary.LittleEndian, &prevIndex); err != nil {
			return relay.Hash{}, ErrMalformedTransaction
		}
		scriptLen, err := readVarInt(r)
		if err != nil {
			return relay.Hash{}, err
		}
		script := make([]byte, scriptLen)
		if _, err := readFullTx(r, script); err != nil {
			return relay.Hash{}, err
		}
		var sequence uint32
		if err := binary.Read(r, binary.LittleEndian, &sequence); err != nil {
			return relay.Hash{}, ErrMalformedTransaction
		}
		buf.Write(prevTxid[:])
		_ = binary.Write(&buf, binary.LittleEndian, prevIndex)
		writeVarInt(&buf, scriptLen)
		buf.Write(script)
		_ = binary.Write(&buf, binary.LittleEndian, sequence)
	}

	outN, err := readVarInt(r)
	if err != nil {
		return relay.Hash{}, err
	}
	writeVarInt(&buf, outN)
	for _, o := range outputs {
		_ = binary.Write(&buf, binary.LittleEndian, o.ValueSatoshis)
		writeVarInt(&buf, uint64(len(o.Script)))
		buf.Write(o.Script)
	}

	if segwit {
		// Skip witness data: it is not part of the legacy txid.
		for i := uint64(0); i < n; i++ {
			itemCount, err := readVarInt(r)
			if err != nil {
				return relay.Hash{}, err
			}
			for j := uint64(0); j < itemCount; j++ {
				itemLen, err := readVarInt(r)
				if err != nil {
					return relay.Hash{}, err
				}
				item := make([]byte, itemLen)
				if _, err := readFullTx(r, item); err != nil {
					return relay.Hash{}, err
				}
			}
		}
	}

	_ = binary.Write(&buf, binary.LittleEndian, locktime)

	first := sha256.Sum256(buf.Bytes())
	second := sha256.Sum256(first[:])
	return relay.Hash(second), nil
}

func writeVarInt(buf *bytes.Buffer, v uint64) {
	switch {
	case v < 0xfd:
		buf.WriteByte(byte(v))
	case v <= 0xffff:
		buf.WriteByte(0xfd)
		_ = binary.Write(buf, binary.LittleEndian, uint16(v))
	case v <= 0xffffffff:
		buf.WriteByte(0xfe)
		_ = binary.Write(buf, binary.LittleEndian, uint32(v))
	default:
		buf.WriteByte(0xff)
		_ = binary.Write(buf, binary.LittleEndian, v)
	}
}

// scriptHex returns the hex encoding used as the wallet-attribution key
// throughout the vault registry and this package.
func scriptHex(script []byte) string {
	return hex.EncodeToString(script)
}

// isAcceptedPaymentScript reports whether script matches one of the
// accepted P2PKH, P2SH, or P2WPKH shapes. Vault registration and
// scanPayment do not call it; a registered wallet entry is not checked
// against these shapes.
func isAcceptedPaymentScript(script []byte) bool {
	switch {
	case len(script) == 25 && script[0] == opDup && script[1] == opHash160 && script[2] == 0x14 &&
		script[23] == opEqualVerify && script[24] == opCheckSig:
		return true
	case len(script) == 23 && script[0] == opHash160 && script[1] == 0x14 && script[22] == opEqual:
		return true
	case len(script) == 22 && script[0] == op0 && script[1] == 0x14:
		return true
	default:
		return false
	}
}

// isOpReturn reports whether script is an OP_RETURN output.
func isOpReturn(script []byte) bool {
	return len(script) > 0 && script[0] == opReturn
}

// opReturnData extracts the pushed payload following OP_RETURN, handling
// both direct-push (<=75 bytes) and OP_PUSHDATA1 encodings.
func opReturnData(script []byte) []byte {
	if len(script) < 2 {
		return nil
	}
	body := script[1:]
	switch {
	case body[0] <= 0x4b:
		n := int(body[0])
		if len(body) < 1+n {
			return nil
		}
		return body[1 : 1+n]
	case body[0] == 0x4c && len(body) >= 2:
		n := int(body[1])
		if len(body) < 2+n {
			return nil
		}
		return body[2 : 2+n]
	default:
		return nil
	}
}

// scanPayment walks every output of tx (per this protocol's resolved
// policy of not trusting a fixed payment-output index), summing amounts
// paid to any script in wallets and collecting the single permitted
// OP_RETURN payload.
func scanPayment(tx Transaction, wallets map[string]struct{}) (paid uint64, opReturn []byte, err error) {
	seenOpReturn := false
	for _, out := range tx.Outputs {
		if isOpReturn(out.Script) {
			if seenOpReturn {
				return 0, nil, ErrMultipleOpReturns
			}
			seenOpReturn = true
			opReturn = opReturnData(out.Script)
			continue
		}
		if _, ok := wallets[scriptHex(out.Script)]; ok {
			paid += out.ValueSatoshis
		}
	}
	if !seenOpReturn {
		return 0, nil, ErrNoOpReturn
	}
	return paid, opReturn, nil
}
