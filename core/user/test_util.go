package user

import (
	"context"

	"github.com/trezcool/schoolhub/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service sending its emails synchronously.
func NewServiceMock(conf *core.Config, repo Repository, mailSvc core.EmailService) Service {
	return &serviceMock{
		service: service{
			conf:    conf,
			repo:    repo,
			mailSvc: mailSvc,
		},
	}
}

func (svc *serviceMock) Approve(ctx context.Context, usr User, a Approval) (User, error) {
	usr, err := svc.approve(ctx, usr, a)
	if err != nil {
		return User{}, err
	}
	// run synchronously
	svc.sendApprovalMail(usr)
	return usr, nil
}
