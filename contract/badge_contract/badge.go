package badge_contract

import "github.com/ethereum/go-ethereum/accounts/abi/bind"

// BadgeContractMetaData holds the ERC-721 subset the server needs to move a
// badge and to read back its Transfer events.
var BadgeContractMetaData = &bind.MetaData{
	ABI: `[
	{"type":"function","name":"safeTransferFrom","stateMutability":"nonpayable","inputs":[
		{"name":"from","type":"address"},
		{"name":"to","type":"address"},
		{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true}]}
]`,
}
